package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditEventCategory(t *testing.T) {
	assert.Equal(t, CategoryCompliance, EventCaseStatusChanged.Category())
	assert.Equal(t, CategoryCompliance, EventCaseDeleted.Category())
	assert.Equal(t, CategoryOperations, EventDocumentStored.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("unknown").Category())
}
