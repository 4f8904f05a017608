package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"juntas/internal/cases/access"
	"juntas/internal/cases/models"
	id "juntas/pkg/domain"
	dErrors "juntas/pkg/domain-errors"
	"juntas/pkg/platform/audit"
	"juntas/pkg/platform/sentinel"
	"juntas/pkg/requestcontext"
)

// UploadDocument fills or replaces the slot for the command's category.
// A zero declared size is taken from the content length.
func (s *Service) UploadDocument(ctx context.Context, caseID id.CaseID, cmd models.UploadDocumentCommand) (_ *models.DocumentSlot, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "UploadDocument", caseID)
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("upload_document", start)

	fields := map[string]string{}
	category := strings.TrimSpace(cmd.Category)
	if category == "" {
		fields["category"] = "is required"
	}
	if strings.TrimSpace(cmd.Name) == "" {
		fields["name"] = "is required"
	}
	if strings.TrimSpace(cmd.MimeType) == "" {
		fields["mimeType"] = "is required"
	}
	if cmd.Size < 0 {
		fields["size"] = "must not be negative"
	}
	if len(fields) > 0 {
		return nil, dErrors.Validation(fields)
	}

	c, actor, err := s.loadCase(ctx, caseID, access.ActionEdit)
	if err != nil {
		return nil, err
	}

	size := cmd.Size
	if size == 0 {
		size = int64(len(cmd.Content))
	}
	var slot *models.DocumentSlot
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		stored, err := s.documents.PutSlot(ctx, models.SlotUpload{
			CaseID:   c.ID,
			Category: category,
			Name:     strings.TrimSpace(cmd.Name),
			MimeType: strings.TrimSpace(cmd.MimeType),
			Content:  cmd.Content,
			Size:     size,
			At:       requestcontext.Now(ctx),
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
		}
		slot = stored
		return s.emit(ctx, actor, c.ID, audit.EventDocumentStored, category)
	})
	if err != nil {
		return nil, asServiceError(err, "failed to store document")
	}

	s.metrics.IncrementDocumentStored()
	s.logger.InfoContext(ctx, "document stored",
		"case_id", c.ID,
		"document_id", slot.ID,
		"category", slot.Category,
		"size", slot.Size,
	)
	return slot, nil
}

// DownloadDocument returns a slot's bytes. Slots stored without content
// read as not found.
func (s *Service) DownloadDocument(ctx context.Context, caseID id.CaseID, docID id.DocumentID) (*models.SlotContent, error) {
	if _, _, err := s.loadCase(ctx, caseID, access.ActionView); err != nil {
		return nil, err
	}
	content, err := s.documents.GetSlotContent(ctx, caseID, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	return content, nil
}
