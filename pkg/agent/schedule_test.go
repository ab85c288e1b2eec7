package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/llm"
	"github.com/conversia-ai/conversia/pkg/models"
	"github.com/conversia-ai/conversia/pkg/prompt"
	"github.com/conversia-ai/conversia/pkg/sharedstate"
)

type fakeProbe struct {
	slots  []string
	err    error
	called bool
	date   string
}

func (p *fakeProbe) CheckAvailability(_ context.Context, _, date, _ string) ([]string, error) {
	p.called = true
	p.date = date
	return p.slots, p.err
}

func testDefaults() *config.Defaults {
	return &config.Defaults{SharedStateTTL: time.Hour, MaxContextMessages: 10}
}

func newScheduleFixture(t *testing.T, stub *llm.StubClient, probe AvailabilityProbe) (*ScheduleHandler, sharedstate.Store) {
	t.Helper()
	registry := testRegistry()
	shared := sharedstate.NewInMemoryStore(registry, testDefaults())
	h := NewScheduleHandler(Deps{
		LLM:      stub,
		Prompts:  prompt.NewResolver(nil),
		Registry: registry,
	}, shared, probe)
	h.now = func() time.Time { return testNow }
	return h, shared
}

func TestScheduleHandlerMissingTreatment(t *testing.T) {
	stub := llm.NewStubClient("Claro, ¿para qué tratamiento te gustaría la cita?")
	probe := &fakeProbe{}
	h, shared := newScheduleFixture(t, stub, probe)

	reply, err := h.Invoke(context.Background(), salesInputs("Quiero agendar para mañana"))
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	assert.False(t, probe.called, "no availability check without a treatment")

	sched, ok, err := shared.GetSchedule(context.Background(), "benova", "benova_contact_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "11-12-2024", sched.Date)
	assert.Equal(t, ScheduleStatusCollecting, sched.Status)

	// The prompt context lists the pending required fields.
	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].SystemPrompt, "11-12-2024")
	assert.Contains(t, calls[0].SystemPrompt, "Datos pendientes")
	assert.Contains(t, calls[0].SystemPrompt, "treatment")
}

func TestScheduleHandlerOffersSlots(t *testing.T) {
	stub := llm.NewStubClient("Tenemos disponibilidad a las 09:00.")
	probe := &fakeProbe{slots: []string{"09:00", "09:30"}}
	h, shared := newScheduleFixture(t, stub, probe)

	_, err := h.Invoke(context.Background(), salesInputs("Quiero agendar botox para mañana"))
	require.NoError(t, err)
	require.True(t, probe.called)
	assert.Equal(t, "11-12-2024", probe.date)

	sched, ok, err := shared.GetSchedule(context.Background(), "benova", "benova_contact_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ScheduleStatusSlotsOffered, sched.Status)
	assert.Equal(t, []string{"09:00 - 09:30", "09:30 - 10:00"}, sched.AvailableSlots)
}

func TestScheduleHandlerSkipsProbeForPriceQueries(t *testing.T) {
	probe := &fakeProbe{slots: []string{"09:00"}}
	h, _ := newScheduleFixture(t, llm.NewStubClient("El botox cuesta..."), probe)

	_, err := h.Invoke(context.Background(), salesInputs("¿Cuánto cuesta el botox? es para mañana"))
	require.NoError(t, err)
	assert.False(t, probe.called)
}

func TestScheduleHandlerConfirmsWithTime(t *testing.T) {
	stub := llm.NewStubClient("Perfecto, confirmo tu cita.")
	h, shared := newScheduleFixture(t, stub, &fakeProbe{slots: []string{"10:00"}})

	_, err := h.Invoke(context.Background(), salesInputs("Confirmo botox mañana a las 10:00"))
	require.NoError(t, err)

	sched, ok, err := shared.GetSchedule(context.Background(), "benova", "benova_contact_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ScheduleStatusConfirmed, sched.Status)
	assert.Equal(t, "10:00", sched.Time)
}

func TestScheduleHandlerProbeFailureDegrades(t *testing.T) {
	stub := llm.NewStubClient("Estoy verificando la agenda, te confirmo en breve.")
	probe := &fakeProbe{err: errors.New("backend down")}
	h, shared := newScheduleFixture(t, stub, probe)

	reply, err := h.Invoke(context.Background(), salesInputs("Quiero agendar botox para mañana"))
	require.NoError(t, err, "availability failures do not fail the request")
	assert.NotEmpty(t, reply)

	sched, _, err := shared.GetSchedule(context.Background(), "benova", "benova_contact_1")
	require.NoError(t, err)
	assert.Empty(t, sched.AvailableSlots)
}

func TestScheduleHandlerPersistsPatientInfo(t *testing.T) {
	h, shared := newScheduleFixture(t, llm.NewStubClient("Gracias Ana."), &fakeProbe{})

	_, err := h.Invoke(context.Background(), models.AgentInputs{
		Question:  "me llamo Ana García, mi teléfono es 3001234567",
		UserID:    "benova_contact_1",
		CompanyID: "benova",
	})
	require.NoError(t, err)

	user, ok, err := shared.GetUser(context.Background(), "benova", "benova_contact_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ana García", user.Name)
	assert.Equal(t, "3001234567", user.Phone)
}
