package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedLLM struct {
	reply    string
	messages []Message
}

func (c *cannedLLM) Chat(_ context.Context, _ string, messages []Message) (string, error) {
	c.messages = messages
	return c.reply, nil
}

func (c *cannedLLM) Model() string    { return "canned" }
func (c *cannedLLM) Endpoint() string { return "memory" }

func TestExtractLabel(t *testing.T) {
	l := &cannedLLM{reply: "```json\n{\"medication_name\": \"Ibuprofen\", \"dosage\": \"200mg\", \"num_pills\": 24}\n```"}

	label, err := ExtractLabel(context.Background(), l, Image{Data: []byte{0xff, 0xd8}, MediaType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, &Label{MedicationName: "Ibuprofen", Dosage: "200mg", NumPills: 24}, label)

	require.Len(t, l.messages, 1)
	assert.Len(t, l.messages[0].Images, 1)
}

func TestParseLabel(t *testing.T) {
	label, err := ParseLabel(`{"medication_name":" Aspirin ","dosage":"","num_pills":"30"}`)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", label.MedicationName)
	assert.Equal(t, float64(30), label.NumPills)

	label, err = ParseLabel(`{"medication_name":"Aspirin","num_pills":-4}`)
	require.NoError(t, err)
	assert.Zero(t, label.NumPills)

	for _, bad := range []string{"I cannot see a label", `{"dosage":"5mg"}`, `{"medication_name":`} {
		_, err := ParseLabel(bad)
		assert.ErrorIs(t, err, ErrUnreadableLabel, bad)
	}
}

func TestScannerUsesModel(t *testing.T) {
	s := NewScanner(&cannedLLM{reply: `{"medication_name":"Metformin","dosage":"500mg","num_pills":60}`})

	label, err := s.Scan(context.Background(), Image{Data: []byte("png"), MediaType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "Metformin", label.MedicationName)
}
