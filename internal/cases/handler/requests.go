package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"juntas/internal/cases/models"
	id "juntas/pkg/domain"
	dErrors "juntas/pkg/domain-errors"
	platformstrings "juntas/pkg/platform/strings"
)

const timeLayout = "15:04"

// CreateCaseRequest is the body of POST /cases.
type CreateCaseRequest struct {
	PatientID   string  `json:"patientId"`
	EvaluatorID *string `json:"evaluatorId,omitempty"`
	Date        *string `json:"date,omitempty"`
	Time        *string `json:"time,omitempty"`
	Location    *string `json:"location,omitempty"`
	Notes       string  `json:"notes"`

	cmd models.CreateCaseCommand
}

func (r *CreateCaseRequest) Normalize() {
	r.PatientID = strings.TrimSpace(r.PatientID)
	r.EvaluatorID = platformstrings.TrimToNil(r.EvaluatorID)
	r.Date = platformstrings.TrimToNil(r.Date)
	r.Time = platformstrings.TrimToNil(r.Time)
	r.Location = platformstrings.TrimToNil(r.Location)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *CreateCaseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	fields := map[string]string{}
	cmd := models.CreateCaseCommand{
		ScheduledTime: r.Time,
		Location:      r.Location,
		Notes:         r.Notes,
	}

	if r.PatientID == "" {
		fields["patientId"] = "is required"
	} else if pid, err := id.ParsePatientID(r.PatientID); err != nil {
		fields["patientId"] = "must be a valid identifier"
	} else {
		cmd.PatientID = pid
	}
	if r.EvaluatorID != nil {
		eid, err := id.ParseUserID(*r.EvaluatorID)
		if err != nil {
			fields["evaluatorId"] = "must be a valid identifier"
		} else {
			cmd.EvaluatorID = &eid
		}
	}
	if r.Date != nil {
		d, err := time.Parse(models.DateLayout, *r.Date)
		if err != nil {
			fields["date"] = "must be a date in YYYY-MM-DD format"
		} else {
			cmd.ScheduledDate = &d
		}
	}
	if r.Time != nil {
		if _, err := time.Parse(timeLayout, *r.Time); err != nil {
			fields["time"] = "must be a time in HH:MM format"
		}
	}
	if len(fields) > 0 {
		return dErrors.Validation(fields)
	}
	r.cmd = cmd
	return nil
}

func (r *CreateCaseRequest) Command() models.CreateCaseCommand {
	return r.cmd
}

// UpdateCaseRequest is the body of PUT /cases/{id}. Absent fields are kept.
type UpdateCaseRequest struct {
	Status             *string `json:"status,omitempty"`
	Notes              *string `json:"notes,omitempty"`
	FitnessVerdict     *string `json:"fitnessVerdict,omitempty"`
	PrincipalDiagnosis *string `json:"principalDiagnosis,omitempty"`
	DecisionDate       *string `json:"decisionDate,omitempty"`
	DirectorRemarks    *string `json:"directorRemarks,omitempty"`

	cmd models.UpdateCaseCommand
}

func (r *UpdateCaseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	fields := map[string]string{}
	cmd := models.UpdateCaseCommand{
		Notes:              r.Notes,
		FitnessVerdict:     r.FitnessVerdict,
		PrincipalDiagnosis: r.PrincipalDiagnosis,
		DirectorRemarks:    r.DirectorRemarks,
	}
	if r.Status != nil {
		st, err := models.ParseStatus(strings.ToUpper(strings.TrimSpace(*r.Status)))
		if err != nil {
			fields["status"] = "must be one of DRAFT, PENDING, APPROVED, REJECTED"
		} else {
			cmd.Status = &st
		}
	}
	if r.DecisionDate != nil {
		d, err := time.Parse(models.DateLayout, strings.TrimSpace(*r.DecisionDate))
		if err != nil {
			fields["decisionDate"] = "must be a date in YYYY-MM-DD format"
		} else {
			cmd.DecisionDate = &d
		}
	}
	if len(fields) > 0 {
		return dErrors.Validation(fields)
	}
	if cmd.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}
	r.cmd = cmd
	return nil
}

func (r *UpdateCaseRequest) Command() models.UpdateCaseCommand {
	return r.cmd
}

// SubmitDictamenRequest is the body of POST /cases/{id}/dictamen.
type SubmitDictamenRequest struct {
	Dictamen json.RawMessage `json:"dictamen"`
	Finalize bool            `json:"finalize"`
}

func (r *SubmitDictamenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	trimmed := bytes.TrimSpace(r.Dictamen)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return dErrors.Validation(map[string]string{"dictamen": "must be a JSON object"})
	}
	return nil
}

func (r *SubmitDictamenRequest) Command() models.SubmitDictamenCommand {
	return models.SubmitDictamenCommand{Payload: r.Dictamen, Finalize: r.Finalize}
}

// UploadDocumentRequest is the body of POST /cases/{id}/documents. Content
// is standard base64 and may be omitted.
type UploadDocumentRequest struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Content  string `json:"content,omitempty"`
	Size     *int64 `json:"size,omitempty"`

	decoded []byte
}

func (r *UploadDocumentRequest) Normalize() {
	r.Category = strings.TrimSpace(r.Category)
	r.Name = strings.TrimSpace(r.Name)
	r.MimeType = strings.TrimSpace(r.MimeType)
	r.Content = strings.TrimSpace(r.Content)
}

func (r *UploadDocumentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	fields := map[string]string{}
	if r.Category == "" {
		fields["category"] = "is required"
	}
	if len(r.Category) > 100 {
		fields["category"] = "must be at most 100 characters"
	}
	if r.Name == "" {
		fields["name"] = "is required"
	}
	if r.MimeType == "" {
		fields["mimeType"] = "is required"
	}
	if r.Size != nil && *r.Size < 0 {
		fields["size"] = "must not be negative"
	}
	if r.Content != "" {
		decoded, err := base64.StdEncoding.DecodeString(r.Content)
		if err != nil {
			fields["content"] = "must be base64 encoded"
		} else {
			r.decoded = decoded
		}
	}
	if len(fields) > 0 {
		return dErrors.Validation(fields)
	}
	return nil
}

func (r *UploadDocumentRequest) Command() models.UploadDocumentCommand {
	cmd := models.UploadDocumentCommand{
		Category: r.Category,
		Name:     r.Name,
		MimeType: r.MimeType,
		Content:  r.decoded,
	}
	if r.Size != nil {
		cmd.Size = *r.Size
	}
	return cmd
}

// parseListQuery reads page, pageSize, evaluatorId and status.
func parseListQuery(values url.Values) (models.ListCasesQuery, error) {
	var q models.ListCasesQuery
	fields := map[string]string{}

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fields["page"] = "must be a positive integer"
		}
		q.Page = n
	}
	if raw := values.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fields["pageSize"] = "must be a positive integer"
		}
		q.PageSize = n
	}
	if raw := strings.TrimSpace(values.Get("evaluatorId")); raw != "" {
		eid, err := id.ParseUserID(raw)
		if err != nil {
			fields["evaluatorId"] = "must be a valid identifier"
		} else {
			q.EvaluatorID = &eid
		}
	}
	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		st, err := models.ParseStatus(strings.ToUpper(raw))
		if err != nil {
			fields["status"] = "must be one of DRAFT, PENDING, APPROVED, REJECTED"
		} else {
			q.Status = &st
		}
	}
	if len(fields) > 0 {
		return q, dErrors.Validation(fields)
	}
	return q, nil
}
