package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversia-ai/conversia/pkg/agent"
	"github.com/conversia-ai/conversia/pkg/audit"
	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/llm"
	"github.com/conversia-ai/conversia/pkg/models"
	"github.com/conversia-ai/conversia/pkg/prompt"
	"github.com/conversia-ai/conversia/pkg/saga"
	"github.com/conversia-ai/conversia/pkg/sharedstate"
	"github.com/conversia-ai/conversia/pkg/tools"
)

const (
	testCompany = "benova"
	testUser    = "benova_contact_1"
)

func routerJSON(intent string, confidence float64) string {
	return fmt.Sprintf(`{"intent": %q, "confidence": %.2f}`, intent, confidence)
}

type backendCall struct {
	path string
	body map[string]any
}

// fakeBackend plays the schedule, notification and ticket services.
type fakeBackend struct {
	mu        sync.Mutex
	calls     []backendCall
	failEmail bool
}

func (b *fakeBackend) record(r *http.Request) backendCall {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)
	call := backendCall{path: r.URL.Path, body: body}
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
	return call
}

func (b *fakeBackend) callsTo(path string) []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []backendCall
	for _, c := range b.calls {
		if c.path == path {
			out = append(out, c)
		}
	}
	return out
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	switch r.URL.Path {
	case "/check-availability":
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"available_slots": []any{"09:00", "09:30"}},
		})
	case "/schedule-request":
		json.NewEncoder(w).Encode(map[string]any{
			"success":       true,
			"booking_id":    "bk-1",
			"calendar_link": "https://cal.example/bk-1",
		})
	case "/send-email":
		if b.failEmail {
			http.Error(w, "smtp down", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "sent"})
	case "/cancel-booking":
		json.NewEncoder(w).Encode(map[string]any{"status": "cancelled"})
	case "/tickets":
		json.NewEncoder(w).Encode(map[string]any{"ticket_id": "tk-1"})
	default:
		http.NotFound(w, r)
	}
}

func testTenant(backendURL string) *config.TenantConfig {
	return &config.TenantConfig{
		CompanyID:   testCompany,
		DisplayName: "Benova",
		RedisPrefix: "benova:",
		Services:    []string{"botox", "limpieza facial"},
		ScheduleBackend: config.ScheduleBackend{
			URL:      backendURL,
			Kind:     config.ScheduleBackendGeneric,
			AgendaID: "benova-main",
		},
		TreatmentDurations: map[string]config.TreatmentInfo{
			"botox": {DurationMinutes: 30, Sessions: 1},
		},
		Keywords: config.KeywordSets{
			Emergency: []string{"sangrado", "dolor intenso", "urgente"},
			Sales:     []string{"precio", "costo", "cuánto cuesta"},
			Schedule:  []string{"agendar", "cita"},
		},
		RequiredBookingFields: []string{"name", "phone", "date", "treatment"},
		NotificationURL:       backendURL,
		TicketURL:             backendURL,
		MaxContextMessages:    10,
	}
}

type fixture struct {
	orchestrator *Orchestrator
	shared       sharedstate.Store
	audit        *audit.LogStore
	stub         *llm.StubClient
}

func newFixture(t *testing.T, stub *llm.StubClient, backendURL string, override func(*Options)) fixture {
	t.Helper()
	registry := config.NewTenantRegistry(map[string]*config.TenantConfig{
		testCompany: testTenant(backendURL),
	}, nil)
	defaults := &config.Defaults{
		SharedStateTTL:      time.Hour,
		MaxContextMessages:  10,
		AvailabilityTimeout: 5 * time.Second,
		BookingTimeout:      5 * time.Second,
		NotifyTimeout:       5 * time.Second,
	}
	shared := sharedstate.NewInMemoryStore(registry, defaults)
	resolver := prompt.NewResolver(nil)
	auditStore := audit.NewLogStore(0)
	deps := agent.Deps{LLM: stub, Prompts: resolver, Registry: registry}

	opts := Options{
		Registry:  registry,
		Router:    agent.NewRouter(stub, resolver),
		Sales:     agent.NewAdapter(agent.NewSalesHandler(deps), "sales", time.Second, 0),
		Support:   agent.NewAdapter(agent.NewSupportHandler(deps), "support", time.Second, 0),
		Emergency: agent.NewAdapter(agent.NewEmergencyHandler(deps), "emergency", time.Second, 0),
		Schedule:  agent.NewAdapter(agent.NewScheduleHandler(deps, shared, nil), "schedule", time.Second, 0),
		Shared:    shared,
		Tools:     tools.NewExecutor(registry, defaults),
		Sagas:     saga.NewCoordinator(auditStore),
		Prompts:   resolver,
	}
	if override != nil {
		override(&opts)
	}
	return fixture{
		orchestrator: NewOrchestrator(opts),
		shared:       shared,
		audit:        auditStore,
		stub:         stub,
	}
}

func runQuestion(f fixture, question string) *models.OrchestratorState {
	state := models.NewOrchestratorState(question, testUser, testCompany, nil, "")
	return f.orchestrator.Run(context.Background(), state)
}

func TestRunSalesFlow(t *testing.T) {
	stub := llm.NewStubClient(
		routerJSON("SALES", 0.92),
		"El botox cuesta $500.000 por sesión.",
	)
	f := newFixture(t, stub, "http://backend", nil)

	state := runQuestion(f, "¿Cuánto cuesta el botox?")

	assert.Equal(t, models.IntentSales, state.Intent)
	assert.Equal(t, "sales", state.CurrentAgent)
	assert.True(t, strings.HasSuffix(state.AgentResponse, "¿Te gustaría agendar tu cita en Benova?"), state.AgentResponse)

	salesInfo, ok := state.SharedContext["sales_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, salesInfo["has_pricing"])

	services, err := f.shared.GetServices(context.Background(), testCompany, testUser)
	require.NoError(t, err)
	require.Len(t, services, 1)

	user, ok, err := f.shared.GetUser(context.Background(), testCompany, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"sales"}, user.IntentHistory)
}

func TestRunLowConfidenceRoutesToSupport(t *testing.T) {
	stub := llm.NewStubClient(
		routerJSON("SALES", 0.7),
		"Con gusto te cuento más sobre nuestros tratamientos.",
	)
	f := newFixture(t, stub, "http://backend", nil)

	state := runQuestion(f, "háblame de los tratamientos")

	// Confidence at the threshold is not enough for a specialist.
	assert.Equal(t, models.IntentSales, state.Intent)
	assert.Equal(t, "support", state.CurrentAgent)
	assert.NotEmpty(t, state.AgentResponse)
}

func TestRunEmergencySecondaryHandoff(t *testing.T) {
	stub := llm.NewStubClient(
		routerJSON("SALES", 0.9),
		"La revisión post-tratamiento cuesta $100.000.",
		"Aplica presión suave sobre la zona.",
	)
	f := newFixture(t, stub, "http://backend", nil)

	state := runQuestion(f, "Después del botox tengo sangrado, ¿cuánto cuesta la revisión?")

	assert.True(t, state.HandoffCompleted)
	assert.True(t, state.HandoffRequested)
	assert.Equal(t, "sales", state.HandoffFrom)
	assert.Equal(t, "emergency", state.HandoffTo)
	assert.True(t, strings.HasSuffix(state.AgentResponse, "Escalando tu caso de emergencia en Benova ahora mismo. 🚨"), state.AgentResponse)

	last, ok, err := f.shared.GetLastHandoff(context.Background(), testCompany, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "emergency", last.ToAgent)

	emergency, ok, err := f.shared.GetEmergency(context.Background(), testCompany, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, emergency.Escalated)
}

func TestValidateOutputSecondaryAtThresholdDoesNotHandOff(t *testing.T) {
	f := newFixture(t, llm.NewStubClient(), "http://backend", nil)

	state := models.NewOrchestratorState("hola", testUser, testCompany, nil, "")
	state.CurrentAgent = "sales"
	state.AgentResponse = "Una respuesta suficientemente larga para pasar."
	state.SecondaryIntent = models.IntentSupport
	state.SecondaryConfidence = 0.7

	assert.Equal(t, nodeEnd, f.orchestrator.validateOutput(context.Background(), state))
	assert.False(t, state.HandoffRequested)
}

func TestRunTransitionCap(t *testing.T) {
	f := newFixture(t, llm.NewStubClient(), "http://backend", nil)

	// A self-edge that never reaches end: the walk must abort at the cap
	// with the tenant-branded fallback reply.
	f.orchestrator.steps[nodeClassifyIntent] = func(context.Context, *models.OrchestratorState) node {
		return nodeClassifyIntent
	}

	state := runQuestion(f, "hola")

	assert.Contains(t, state.Errors, "transition cap exceeded")
	assert.Equal(t, GenericErrorReply("Benova"), state.AgentResponse)
}

func TestRunInputValidationFailure(t *testing.T) {
	stub := llm.NewStubClient()
	f := newFixture(t, stub, "http://backend", nil)

	state := runQuestion(f, "   ")

	assert.Contains(t, state.AgentResponse, "Benova")
	assert.Contains(t, state.Errors, "input invalid")
	assert.Empty(t, stub.Calls(), "no model call on invalid input")
}

func TestRunUnknownTenant(t *testing.T) {
	f := newFixture(t, llm.NewStubClient(), "http://backend", nil)

	state := f.orchestrator.Run(context.Background(),
		models.NewOrchestratorState("hola", "ghost_contact_1", "ghost", nil, ""))

	assert.Contains(t, state.Errors, "input invalid")
	assert.NotEmpty(t, state.AgentResponse)
}

func TestRunDeadlineExceeded(t *testing.T) {
	f := newFixture(t, llm.NewStubClient(), "http://backend", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := f.orchestrator.Run(ctx, models.NewOrchestratorState("hola", testUser, testCompany, nil, ""))

	assert.NotEmpty(t, state.AgentResponse)
	require.NotEmpty(t, state.Errors)
	assert.Contains(t, state.Errors[0], "deadline exceeded")
}

func TestRunAvailabilityLoopback(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.serve))
	defer srv.Close()

	stub := llm.NewStubClient(
		routerJSON("SCHEDULE", 0.9),
		"Déjame revisar la agenda un momento.",
		"Tenemos estos horarios para tu botox.",
	)
	f := newFixture(t, stub, srv.URL, nil)

	state := runQuestion(f, "Quiero agendar botox para mañana")

	assert.Contains(t, state.ToolsExecuted, "check_availability")
	assert.Equal(t, "Tenemos estos horarios para tu botox.", state.AgentResponse)
	require.Len(t, stub.Calls(), 3, "router, first schedule pass, post-availability pass")

	sched, ok, err := f.shared.GetSchedule(context.Background(), testCompany, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, agent.ScheduleStatusSlotsOffered, sched.Status)
	assert.Equal(t, []string{"09:00 - 09:30", "09:30 - 10:00"}, sched.AvailableSlots)
}

func TestRunBookingSaga(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.serve))
	defer srv.Close()

	stub := llm.NewStubClient(
		routerJSON("SCHEDULE", 0.9),
		"Perfecto, tu reserva quedó confirmada.",
	)
	f := newFixture(t, stub, srv.URL, nil)
	require.NoError(t, f.shared.SetUser(context.Background(), testCompany, testUser, models.UserInfo{
		Name:  "Ana",
		Phone: "3001234567",
		Email: "ana@example.com",
	}))

	state := runQuestion(f, "Confirmo botox mañana a las 10:00")

	assert.Contains(t, state.ToolsExecuted, "execute_booking")
	assert.Contains(t, state.ToolsExecuted, "send_notification")

	bookings := backend.callsTo("/schedule-request")
	require.Len(t, bookings, 1)
	assert.Equal(t, "botox", bookings[0].body["treatment"])
	assert.Equal(t, "10:00", bookings[0].body["time"])
	require.Len(t, backend.callsTo("/send-email"), 1)
	assert.Empty(t, backend.callsTo("/cancel-booking"))

	sched, ok, err := f.shared.GetSchedule(context.Background(), testCompany, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, agent.ScheduleStatusNotified, sched.Status)
	assert.Equal(t, "bk-1", sched.BookingID)
	assert.Equal(t, "https://cal.example/bk-1", sched.CalendarLink)

	entries, err := f.audit.ListByUser(context.Background(), testUser, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestRunBookingSagaCompensatesOnEmailFailure(t *testing.T) {
	backend := &fakeBackend{failEmail: true}
	srv := httptest.NewServer(http.HandlerFunc(backend.serve))
	defer srv.Close()

	stub := llm.NewStubClient(
		routerJSON("SCHEDULE", 0.9),
		"Perfecto, tu reserva quedó confirmada.",
	)
	f := newFixture(t, stub, srv.URL, nil)
	require.NoError(t, f.shared.SetUser(context.Background(), testCompany, testUser, models.UserInfo{
		Name:  "Ana",
		Phone: "3001234567",
		Email: "ana@example.com",
	}))

	state := runQuestion(f, "Confirmo botox mañana a las 10:00")

	// The created booking is rolled back and the user is told softly.
	cancels := backend.callsTo("/cancel-booking")
	require.Len(t, cancels, 1)
	assert.Equal(t, "bk-1", cancels[0].body["event_id"])
	assert.Contains(t, state.AgentResponse, "no pudimos confirmar tu reserva")

	sched, ok, err := f.shared.GetSchedule(context.Background(), testCompany, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, agent.ScheduleStatusConfirmed, sched.Status, "booked state is never reached")
	assert.Empty(t, sched.BookingID)

	entries, err := f.audit.ListByUser(context.Background(), testUser, 10)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.ActionName)
	}
	assert.Contains(t, names, "create_booking")
	assert.Contains(t, names, "send_confirmation")
	assert.Contains(t, names, "compensate_create_booking")
}

func TestRunSupportTicket(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.serve))
	defer srv.Close()

	stub := llm.NewStubClient(
		routerJSON("SUPPORT", 0.9),
		"Lamento el inconveniente, ya estamos revisándolo.",
	)
	f := newFixture(t, stub, srv.URL, nil)

	state := runQuestion(f, "La aplicación no funciona desde ayer")

	assert.Contains(t, state.ToolsExecuted, "create_ticket")
	assert.Equal(t, "tk-1", state.SharedContext["support_ticket_id"])

	tickets := backend.callsTo("/tickets")
	require.Len(t, tickets, 1)
	assert.Equal(t, "medium", tickets[0].body["priority"])
	assert.Equal(t, testUser, tickets[0].body["requester_id"])

	supportEntries, err := f.shared.GetSupport(context.Background(), testCompany, testUser)
	require.NoError(t, err)
	require.NotEmpty(t, supportEntries)
	assert.Equal(t, "tk-1", supportEntries[len(supportEntries)-1].TicketID)
}

func TestRunRetryEscalatesToSupport(t *testing.T) {
	stub := llm.NewStubClient(routerJSON("SALES", 0.9))
	failing := agent.HandlerFunc(func(context.Context, models.AgentInputs) (string, error) {
		return "", errors.New("model flaked")
	})
	supportReply := "Un asesor humano te contactará muy pronto."
	supporting := agent.HandlerFunc(func(context.Context, models.AgentInputs) (string, error) {
		return supportReply, nil
	})
	f := newFixture(t, stub, "http://backend", func(opts *Options) {
		opts.Sales = agent.NewAdapter(failing, "sales", time.Second, 0)
		opts.Support = agent.NewAdapter(supporting, "support", time.Second, 0)
	})

	state := runQuestion(f, "hola, quisiera saber del botox")

	assert.True(t, state.ShouldEscalate)
	assert.Equal(t, 1, state.Retries)
	assert.Equal(t, "support", state.CurrentAgent)
	assert.Equal(t, supportReply, state.AgentResponse)
}

func TestHandleRetryBudget(t *testing.T) {
	f := newFixture(t, llm.NewStubClient(), "http://backend", nil)

	// First retry with a usable reply re-runs the current specialist.
	state := models.NewOrchestratorState("hola", testUser, testCompany, nil, "")
	state.CurrentAgent = "sales"
	state.AgentResponse = "Una respuesta previa que sí tiene contenido."
	assert.Equal(t, nodeExecuteSales, f.orchestrator.handleRetry(state))
	assert.Equal(t, 1, state.Retries)

	// Out of budget ends unconditionally, even without a prior escalation.
	state = models.NewOrchestratorState("hola", testUser, testCompany, nil, "")
	state.CurrentAgent = "sales"
	state.Retries = 3
	assert.Equal(t, nodeEnd, f.orchestrator.handleRetry(state))

	// The escalation to support happens exactly once.
	state = models.NewOrchestratorState("hola", testUser, testCompany, nil, "")
	state.CurrentAgent = "sales"
	state.Retries = 1
	assert.Equal(t, nodeExecuteSupport, f.orchestrator.handleRetry(state))
	assert.True(t, state.ShouldEscalate)
	assert.Equal(t, nodeEnd, f.orchestrator.handleRetry(state))
}

func TestApplicableToolBookedSendsNotification(t *testing.T) {
	f := newFixture(t, llm.NewStubClient(), "http://backend", nil)
	ctx := context.Background()
	require.NoError(t, f.shared.SetSchedule(ctx, testCompany, testUser, models.ScheduleInfo{
		Treatment: "botox",
		Date:      "11-12-2030",
		Time:      "10:00",
		Status:    agent.ScheduleStatusBooked,
	}))

	state := models.NewOrchestratorState("confirmación", testUser, testCompany, nil, "")
	state.CurrentAgent = "schedule"
	state.AgentResponse = "Tu reserva ya está registrada en el sistema."

	assert.Equal(t, nodeSendNotification, f.orchestrator.validateOutput(ctx, state))

	// A second pass in the same request does not re-send.
	state.ToolsExecuted = append(state.ToolsExecuted, string(nodeSendNotification))
	_, ok := f.orchestrator.applicableTool(ctx, state)
	assert.False(t, ok)
}

func TestGenericErrorReply(t *testing.T) {
	assert.Contains(t, GenericErrorReply("Benova"), "Benova")
	assert.NotEmpty(t, GenericErrorReply(""))
}
