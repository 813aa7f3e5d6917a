package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houzhh15/mergeq/cmd/server/internal/models"
	"github.com/houzhh15/mergeq/cmd/server/internal/notify"
)

func changeContext() map[string]any {
	summary := &notify.ChangeSummary{
		User:       &models.UserProxy{UID: "u1", DisplayName: "John Roe", Email: "john.roe@example.com"},
		Fields:     []string{"description", "developer", "ticketNumber", "type"},
		ChangeType: notify.ChangeType{Updated: true},
		Queue:      &models.Queue{ID: "q1", Name: "Release Queue"},
		Latest:     models.QueueItem{ID: "i1", QueueID: "q1", TicketNumber: "MQ-102"},
	}
	diff := notify.Diff{
		Before: map[string]string{
			"description":  "-",
			"developer":    "-",
			"ticketNumber": "-",
			"type":         "",
		},
		After: map[string]string{
			"description":  "Lokg ueowi clodp",
			"developer":    "Jane Doe",
			"ticketNumber": "MQ-102",
			"type":         "CLF Improve, SVP Improve",
		},
	}
	return map[string]any{"Summary": summary, "Diff": diff}
}

func TestRenderHTML(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	body, err := renderer.Render(QueueItemChangeHTML, changeContext())
	require.NoError(t, err)

	assert.Contains(t, body, "Merge Task Updated")
	assert.Contains(t, body, "Release Queue")
	assert.Contains(t, body, "MQ-102")
	assert.Contains(t, body, "John Roe")
	assert.Contains(t, body, "Jane Doe")
	assert.Contains(t, body, "CLF Improve, SVP Improve")
}

func TestRenderText(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	body, err := renderer.Render(QueueItemChangeText, changeContext())
	require.NoError(t, err)

	assert.Contains(t, body, "Merge Task Updated")
	assert.Contains(t, body, "description: - -> Lokg ueowi clodp")
	assert.Contains(t, body, "developer: - -> Jane Doe")
	assert.Contains(t, body, "type:  -> CLF Improve, SVP Improve")
}

func TestRenderUnknownTemplate(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	_, err = renderer.Render("no-such-template", nil)
	assert.Error(t, err)
}
