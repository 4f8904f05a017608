package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"juntas/internal/cases/access"
	"juntas/internal/cases/service"
	"juntas/internal/cases/store/casestore"
	"juntas/internal/cases/store/dictamenstore"
	"juntas/internal/cases/store/documentstore"
	dirmodels "juntas/internal/directory/models"
	dirstore "juntas/internal/directory/store"
	id "juntas/pkg/domain"
	"juntas/pkg/platform/audit/publisher"
	auditmemory "juntas/pkg/platform/audit/store/memory"
	"juntas/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router    http.Handler
	patient   id.PatientID
	evaluator id.UserID
	other     id.UserID
	hr        id.UserID
	director  id.UserID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctx := context.Background()
	directory := dirstore.NewInMemory()
	svc := service.New(
		casestore.NewInMemory(),
		documentstore.NewInMemory(),
		dictamenstore.NewInMemory(),
		directory,
		access.New(),
		service.WithAuditPublisher(publisher.New(auditmemory.NewInMemoryStore())),
		service.WithRequiredCategories(2),
	)

	patient := &dirmodels.Patient{ID: id.PatientID(uuid.New()), FullName: "Ana Ruiz", DocumentNumber: "30111222"}
	s.Require().NoError(directory.CreatePatient(ctx, patient))
	s.patient = patient.ID

	addUser := func(email string, role id.Role) id.UserID {
		u := &dirmodels.User{ID: id.UserID(uuid.New()), Email: email, Role: role, Active: true}
		s.Require().NoError(directory.CreateUser(ctx, u))
		return u.ID
	}
	s.evaluator = addUser("eval@h.org", id.RoleEvaluatingPhysician)
	s.other = addUser("other@h.org", id.RoleEvaluatingPhysician)
	s.hr = addUser("hr@h.org", id.RoleHR)
	s.director = addUser("dir@h.org", id.RoleMedicalDirector)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := chi.NewRouter()
	New(svc, logger, 1<<20).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(req *http.Request, actor id.UserID, role id.Role) *http.Request {
	return testutil.WithActor(req, actor, role)
}

func (s *HandlerSuite) createCase(actor id.UserID, role id.Role) CaseResponse {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases", map[string]any{
		"patientId": s.patient.String(),
		"date":      "2026-06-01",
		"time":      "09:30",
		"location":  "Consultorio 3",
	})
	rr := testutil.DoRequest(s.router, s.do(req, actor, role))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return *testutil.UnmarshalResponse[CaseResponse](s.T(), rr)
}

func (s *HandlerSuite) upload(caseID, category, name string, content []byte) *DocumentResponse {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases/"+caseID+"/documents", map[string]any{
		"category": category,
		"name":     name,
		"mimeType": "application/pdf",
		"content":  base64.StdEncoding.EncodeToString(content),
	})
	rr := testutil.DoRequest(s.router, s.do(req, s.evaluator, id.RoleEvaluatingPhysician))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[DocumentResponse](s.T(), rr)
}

func (s *HandlerSuite) TestCreate() {
	s.Run("returns the new case as PENDING", func() {
		c := s.createCase(s.evaluator, id.RoleEvaluatingPhysician)
		s.Equal("PENDING", c.Status)
		s.Equal(s.evaluator.String(), c.EvaluatorID)
		s.Equal("2026-06-01", c.Date)
		s.Require().NotNil(c.Time)
		s.Equal("09:30", *c.Time)
		s.Equal(2, c.RequiredDocuments)
	})

	s.Run("HR cannot create", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases", map[string]any{"patientId": s.patient.String()})
		rr := testutil.DoRequest(s.router, s.do(req, s.hr, id.RoleHR))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("malformed time is a validation error", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases", map[string]any{
			"patientId": s.patient.String(),
			"time":      "9h",
		})
		rr := testutil.DoRequest(s.router, s.do(req, s.evaluator, id.RoleEvaluatingPhysician))
		testutil.AssertFieldError(s.T(), rr, "time")
	})

	s.Run("unauthenticated request is rejected", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases", map[string]any{"patientId": s.patient.String()})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})
}

func (s *HandlerSuite) TestListScopesEvaluators() {
	s.createCase(s.evaluator, id.RoleEvaluatingPhysician)
	s.createCase(s.other, id.RoleEvaluatingPhysician)

	rr := testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/cases"), s.evaluator, id.RoleEvaluatingPhysician))
	testutil.AssertStatusOK(s.T(), rr)
	own := testutil.UnmarshalResponse[CaseListResponse](s.T(), rr)
	s.Equal(1, own.Total)
	s.Equal(s.evaluator.String(), own.Items[0].EvaluatorID)

	rr = testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/cases?pageSize=1"), s.hr, id.RoleHR))
	testutil.AssertStatusOK(s.T(), rr)
	all := testutil.UnmarshalResponse[CaseListResponse](s.T(), rr)
	s.Equal(2, all.Total)
	s.Len(all.Items, 1)
	s.Equal(1, all.PageSize)

	rr = testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/cases?status=archived"), s.hr, id.RoleHR))
	testutil.AssertFieldError(s.T(), rr, "status")
}

func (s *HandlerSuite) TestListBeyondLastPageIsEmpty() {
	s.createCase(s.evaluator, id.RoleEvaluatingPhysician)

	rr := testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/cases?page=184467440737095516&pageSize=100"), s.hr, id.RoleHR))
	testutil.AssertStatusOK(s.T(), rr)
	list := testutil.UnmarshalResponse[CaseListResponse](s.T(), rr)
	s.Equal(1, list.Total)
	s.Empty(list.Items)
}

func (s *HandlerSuite) TestApprovalShowsIncompleteUntilDocumentsArrive() {
	c := s.createCase(s.evaluator, id.RoleEvaluatingPhysician)

	req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/cases/"+c.ID, map[string]any{"status": "approved"})
	rr := testutil.DoRequest(s.router, s.do(req, s.hr, id.RoleHR))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	updated := testutil.UnmarshalResponse[CaseResponse](s.T(), rr)
	s.Equal("INCOMPLETE", updated.Status)
	s.Equal("APPROVED", updated.StoredStatus)

	s.upload(c.ID, "blood_test", "hemograma.pdf", []byte("%PDF-1"))
	s.upload(c.ID, "x_ray", "torax.pdf", []byte("%PDF-2"))

	rr = testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/cases/"+c.ID), s.hr, id.RoleHR))
	testutil.AssertStatusOK(s.T(), rr)
	detail := testutil.UnmarshalResponse[CaseDetailResponse](s.T(), rr)
	s.Equal("APPROVED", detail.Status)
	s.Equal(2, detail.DocumentsCount)
	s.Len(detail.Documents, 2)
}

func (s *HandlerSuite) TestUpdateRejectsEmptyBody() {
	c := s.createCase(s.evaluator, id.RoleEvaluatingPhysician)
	req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/cases/"+c.ID, map[string]any{})
	rr := testutil.DoRequest(s.router, s.do(req, s.evaluator, id.RoleEvaluatingPhysician))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
}

func (s *HandlerSuite) TestDocumentRoundTrip() {
	c := s.createCase(s.evaluator, id.RoleEvaluatingPhysician)
	content := []byte("%PDF-1.7 resultado")

	first := s.upload(c.ID, "blood_test", "v1.pdf", []byte("old"))
	second := s.upload(c.ID, "blood_test", "v2.pdf", content)
	s.Equal(first.ID, second.ID, "same category replaces the slot")
	s.Equal(int64(len(content)), second.Size)
	s.Equal("/cases/"+c.ID+"/documents/"+second.ID+"/download", second.DownloadURL)

	rr := testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, second.DownloadURL), s.evaluator, id.RoleEvaluatingPhysician))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.Equal("application/pdf", rr.Header().Get("Content-Type"))
	s.Contains(rr.Header().Get("Content-Disposition"), `filename=v2.pdf`)
	s.Equal(content, rr.Body.Bytes())

	rr = testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, second.DownloadURL), s.other, id.RoleEvaluatingPhysician))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestUploadRejectsBadContent() {
	c := s.createCase(s.evaluator, id.RoleEvaluatingPhysician)
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases/"+c.ID+"/documents", map[string]any{
		"category": "blood_test",
		"name":     "a.pdf",
		"mimeType": "application/pdf",
		"content":  "not base64!",
	})
	rr := testutil.DoRequest(s.router, s.do(req, s.evaluator, id.RoleEvaluatingPhysician))
	testutil.AssertFieldError(s.T(), rr, "content")
}

func (s *HandlerSuite) TestDictamen() {
	c := s.createCase(s.evaluator, id.RoleEvaluatingPhysician)
	path := "/cases/" + c.ID + "/dictamen"

	s.Run("absent opinion renders as null", func() {
		rr := testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, path), s.evaluator, id.RoleEvaluatingPhysician))
		testutil.AssertStatusOK(s.T(), rr)
		s.JSONEq(`{"dictamen":null}`, rr.Body.String())
	})

	s.Run("finalizing stores the payload and moves the case to PENDING", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]any{
			"dictamen": map[string]any{"fitnessVerdict": "APTO", "principalDiagnosis": "sano"},
			"finalize": true,
		})
		rr := testutil.DoRequest(s.router, s.do(req, s.evaluator, id.RoleEvaluatingPhysician))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		resp := testutil.UnmarshalResponse[SubmitDictamenResponse](s.T(), rr)
		s.Require().NotNil(resp.Dictamen)
		s.JSONEq(`{"fitnessVerdict":"APTO","principalDiagnosis":"sano"}`, string(resp.Dictamen.Payload))
		s.Require().NotNil(resp.Case.FitnessVerdict)
		s.Equal("APTO", *resp.Case.FitnessVerdict)
		s.Equal("PENDING", resp.Case.StoredStatus)

		rr = testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, path), s.hr, id.RoleHR))
		testutil.AssertStatusOK(s.T(), rr)
		env := testutil.UnmarshalResponse[DictamenEnvelope](s.T(), rr)
		s.Require().NotNil(env.Dictamen)
		s.Equal(resp.Dictamen.ID, env.Dictamen.ID)
	})

	s.Run("non object payload is rejected", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, path, `{"dictamen":[1,2]}`)
		rr := testutil.DoRequest(s.router, s.do(req, s.evaluator, id.RoleEvaluatingPhysician))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *HandlerSuite) TestDeleteRemovesCase() {
	c := s.createCase(s.evaluator, id.RoleEvaluatingPhysician)
	doc := s.upload(c.ID, "blood_test", "a.pdf", []byte("x"))

	rr := testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/cases/"+c.ID), s.director, id.RoleMedicalDirector))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")

	rr = testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/cases/"+c.ID), s.hr, id.RoleHR))
	s.Require().Equal(http.StatusNoContent, rr.Code, rr.Body.String())

	rr = testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/cases/"+c.ID), s.hr, id.RoleHR))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, doc.DownloadURL), s.hr, id.RoleHR))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestEventsTrail() {
	c := s.createCase(s.evaluator, id.RoleEvaluatingPhysician)
	req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/cases/"+c.ID, map[string]any{"notes": "control anual"})
	rr := testutil.DoRequest(s.router, s.do(req, s.evaluator, id.RoleEvaluatingPhysician))
	testutil.AssertStatusOK(s.T(), rr)

	rr = testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/cases/"+c.ID+"/events"), s.director, id.RoleMedicalDirector))
	testutil.AssertStatusOK(s.T(), rr)
	events := testutil.UnmarshalResponse[EventListResponse](s.T(), rr)
	s.Len(events.Items, 2)
}

func (s *HandlerSuite) TestInvalidCaseID() {
	rr := testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/cases/not-a-uuid"), s.hr, id.RoleHR))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
}
