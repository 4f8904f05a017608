package handler

import (
	"encoding/json"
	"fmt"
	"time"

	"juntas/internal/cases/models"
	"juntas/pkg/platform/audit"
)

// CaseResponse shows the display status; storedStatus is what was last written.
type CaseResponse struct {
	ID                 string    `json:"id"`
	PatientID          string    `json:"patientId"`
	EvaluatorID        string    `json:"evaluatorId"`
	Status             string    `json:"status"`
	StoredStatus       string    `json:"storedStatus"`
	Date               string    `json:"date"`
	Time               *string   `json:"time"`
	Location           *string   `json:"location"`
	Notes              string    `json:"notes"`
	PrincipalDiagnosis *string   `json:"principalDiagnosis"`
	FitnessVerdict     *string   `json:"fitnessVerdict"`
	DirectorRemarks    *string   `json:"directorRemarks"`
	DecisionDate       *string   `json:"decisionDate"`
	DocumentsCount     int       `json:"documentsCount"`
	RequiredDocuments  int       `json:"requiredDocuments"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type CaseListResponse struct {
	Items    []CaseResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

type CaseDetailResponse struct {
	CaseResponse
	Dictamen  *DictamenResponse  `json:"dictamen"`
	Documents []DocumentResponse `json:"documents"`
}

type DictamenResponse struct {
	ID        string          `json:"id"`
	CaseID    string          `json:"caseId"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DictamenEnvelope renders an absent opinion as {"dictamen": null}.
type DictamenEnvelope struct {
	Dictamen *DictamenResponse `json:"dictamen"`
}

type SubmitDictamenResponse struct {
	Dictamen *DictamenResponse `json:"dictamen"`
	Case     CaseResponse      `json:"case"`
}

// DocumentResponse never includes content.
type DocumentResponse struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"caseId"`
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	HasContent  bool      `json:"hasContent"`
	DownloadURL string    `json:"downloadUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type EventResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Category  string    `json:"category"`
	ActorID   string    `json:"actorId"`
	ActorRole string    `json:"actorRole"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type EventListResponse struct {
	Items []EventResponse `json:"items"`
}

func toCaseResponse(s models.CaseSummary) CaseResponse {
	c := s.Case
	resp := CaseResponse{
		ID:                 c.ID.String(),
		PatientID:          c.PatientID.String(),
		EvaluatorID:        c.EvaluatorID.String(),
		Status:             s.DisplayStatus,
		StoredStatus:       c.Status.String(),
		Date:               c.ScheduledDate.Format(models.DateLayout),
		Time:               c.ScheduledTime,
		Location:           c.Location,
		Notes:              c.Notes,
		PrincipalDiagnosis: c.PrincipalDiagnosis,
		FitnessVerdict:     c.FitnessVerdict,
		DirectorRemarks:    c.DirectorRemarks,
		DocumentsCount:     s.DocumentsCount,
		RequiredDocuments:  s.Required,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
	if c.DecisionDate != nil {
		d := c.DecisionDate.Format(models.DateLayout)
		resp.DecisionDate = &d
	}
	return resp
}

func toCaseListResponse(list *models.CaseList) CaseListResponse {
	resp := CaseListResponse{
		Items:    make([]CaseResponse, 0, len(list.Items)),
		Total:    list.Total,
		Page:     list.Page,
		PageSize: list.PageSize,
	}
	for _, s := range list.Items {
		resp.Items = append(resp.Items, toCaseResponse(s))
	}
	return resp
}

func toCaseDetailResponse(d *models.CaseDetail) CaseDetailResponse {
	resp := CaseDetailResponse{
		CaseResponse: toCaseResponse(d.CaseSummary),
		Dictamen:     toDictamenResponse(d.Dictamen),
		Documents:    make([]DocumentResponse, 0, len(d.Documents)),
	}
	for _, slot := range d.Documents {
		resp.Documents = append(resp.Documents, toDocumentResponse(slot))
	}
	return resp
}

func toDictamenResponse(d *models.Dictamen) *DictamenResponse {
	if d == nil {
		return nil
	}
	return &DictamenResponse{
		ID:        d.ID.String(),
		CaseID:    d.CaseID.String(),
		Payload:   d.Payload,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toDocumentResponse(slot *models.DocumentSlot) DocumentResponse {
	return DocumentResponse{
		ID:          slot.ID.String(),
		CaseID:      slot.CaseID.String(),
		Category:    slot.Category,
		Name:        slot.Name,
		MimeType:    slot.MimeType,
		Size:        slot.Size,
		HasContent:  slot.HasContent,
		DownloadURL: fmt.Sprintf("/cases/%s/documents/%s/download", slot.CaseID, slot.ID),
		CreatedAt:   slot.CreatedAt,
		UpdatedAt:   slot.UpdatedAt,
	}
}

func toEventListResponse(events []audit.Event) EventListResponse {
	resp := EventListResponse{Items: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp.Items = append(resp.Items, EventResponse{
			ID:        e.ID.String(),
			Action:    string(e.Action),
			Category:  string(e.Category),
			ActorID:   e.ActorID.String(),
			ActorRole: e.ActorRole.String(),
			Detail:    e.Detail,
			RequestID: e.RequestID,
			Timestamp: e.Timestamp,
		})
	}
	return resp
}
