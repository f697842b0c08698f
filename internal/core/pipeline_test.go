package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(cards ...string) []RawRecord {
	out := make([]RawRecord, len(cards))
	for i, c := range cards {
		out[i] = RawRecord{Path: fmt.Sprintf("/book/%d.vcf", i), Data: c}
	}
	return out
}

func TestPipeline_EndToEnd(t *testing.T) {
	in := records(
		card("FN:Alice"),
		card("FN:Bob", "TEL;TYPE=mobile:555", "TEL;TYPE=work:556"),
	)

	rows, err := NewPipeline(2).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{Phone: "", Name: "Alice"},
		{Phone: "555", Name: "Bob (mobile)"},
		{Phone: "556", Name: "Bob (work)"},
	}, rows)

	assert.Equal(t, "\ufeff;Alice;;\n555;Bob (mobile);;\n556;Bob (work);;", Serialize(rows, "\n"))
}

func TestPipeline_FiltersGroups(t *testing.T) {
	in := records(
		card("FN:Friends", "X-ADDRESSBOOKSERVER-KIND:group", "TEL:1", "TEL:2"),
		card("FN:Carol", "TEL:3"),
		card("FN:Work", "X-ADDRESSBOOKSERVER-KIND:group"),
	)

	res, err := NewPipeline(0).Transform(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, 1, res.Contacts)
	assert.Equal(t, 2, res.Groups)
	assert.Equal(t, []Row{{Phone: "3", Name: "Carol"}}, res.Rows)
}

func TestPipeline_PreservesOrder(t *testing.T) {
	var cards []string
	var want []Row
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("Contact %02d", i)
		switch i % 3 {
		case 0:
			cards = append(cards, card("FN:"+name))
			want = append(want, Row{Name: name})
		case 1:
			cards = append(cards, card("FN:"+name, "TEL:1"))
			want = append(want, Row{Phone: "1", Name: name})
		default:
			cards = append(cards, card("FN:"+name, "TEL;TYPE=a:1", "TEL;TYPE=b:2"))
			want = append(want,
				Row{Phone: "1", Name: name + " (a)"},
				Row{Phone: "2", Name: name + " (b)"},
			)
		}
	}

	rows, err := NewPipeline(8).Run(context.Background(), records(cards...))
	require.NoError(t, err)
	assert.Equal(t, want, rows)
}

func TestPipeline_ReportsLowestFailingRecord(t *testing.T) {
	in := records(
		card("FN:Ok"),
		"garbage",
		card("FN:Ok too"),
		"",
	)

	rows, err := NewPipeline(4).Run(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, rows)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Index)
	assert.Equal(t, "/book/1.vcf", pe.Path)
	assert.Contains(t, err.Error(), "#1")
}

func TestPipeline_Empty(t *testing.T) {
	res, err := NewPipeline(1).Transform(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Zero(t, res.Records)
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(1).Run(ctx, records(card("FN:A")))
	assert.ErrorIs(t, err, context.Canceled)
}
