package pdf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pdfsigner/internal/pdf"
	"github.com/dmitrijs2005/pdfsigner/internal/pdf/pdftest"
)

func TestContentBuilder(t *testing.T) {
	var b pdf.ContentBuilder
	b.Op("q").
		Op("rg", pdf.Real(1), pdf.Real(0), pdf.Real(0.5)).
		Op("Tm", 1.0, 0.0, 0.0, 1.0, 150.0, 50.0).
		Op("Tj", pdf.NewText("a (b)")).
		Op("Q")

	assert.Equal(t, "q\n1 0 0.5 rg\n1 0 0 1 150 50 Tm\n(a \\(b\\)) Tj\nQ\n", string(b.Bytes()))
	assert.Equal(t, len(b.Bytes()), b.Len())
}

func TestParseContent(t *testing.T) {
	src := []byte(`q 1 0 0 1 10 20 cm
BI /W 2 /H 1 /BPC 8 /CS /G ID ab EI
/Im1 Do
BT /F1 12 Tf (hi) Tj ET Q % trailing comment`)

	ops, err := pdf.ParseContent(src)
	require.NoError(t, err)

	var names []string
	for _, op := range ops {
		names = append(names, op.Operator)
	}
	assert.Equal(t, []string{"q", "cm", "BI", "Do", "BT", "Tf", "Tj", "ET", "Q"}, names)
	assert.Equal(t, []pdf.Object{pdf.Name("F1"), pdf.Integer(12)}, ops[5].Operands)
}

func TestInterpret(t *testing.T) {
	var b pdf.ContentBuilder
	b.Op("q").
		Op("rg", 0.0, 0.0, 1.0).
		Op("BT").
		Op("Tf", pdf.Name("SigF1"), pdf.Integer(18)).
		Op("Tm", 0.0, 1.0, -1.0, 0.0, 100.0, 200.0).
		Op("Tj", pdf.NewText("Jane")).
		Op("ET").
		Op("Q").
		Op("q").
		Op("cm", 50.0, 0.0, 0.0, 25.0, 10.0, 20.0).
		Op("Do", pdf.Name("SigIm1")).
		Op("Q")

	p, err := pdftest.Interpret(b.Bytes())
	require.NoError(t, err)
	assert.True(t, p.Balanced)

	require.Len(t, p.Texts, 1)
	run := p.Texts[0]
	assert.Equal(t, "Jane", run.Text)
	assert.Equal(t, "SigF1", run.Font)
	assert.Equal(t, 18.0, run.Size)
	assert.Equal(t, pdftest.Matrix{0, 1, -1, 0, 100, 200}, run.Matrix)
	assert.Equal(t, [3]float64{0, 0, 1}, run.Fill)

	require.Len(t, p.Images, 1)
	assert.Equal(t, pdftest.Matrix{50, 0, 0, 25, 10, 20}, p.Images[0].Matrix)
}
