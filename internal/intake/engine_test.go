package intake

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/registry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/syncer"
)

type fakePersister struct {
	mu        sync.Mutex
	scheduled []syncer.Target
}

func (p *fakePersister) Schedule(t syncer.Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduled = append(p.scheduled, t)
}

type fakeAnnouncer struct {
	err       error
	announced []model.Registration
}

func (a *fakeAnnouncer) AnnounceRegistration(_ context.Context, reg model.Registration) error {
	a.announced = append(a.announced, reg)
	return a.err
}

type fakeOperator struct{ alerts []string }

func (o *fakeOperator) Alert(_ context.Context, msg string) { o.alerts = append(o.alerts, msg) }

type fixture struct {
	engine    *Engine
	reg       *registry.Registry
	persister *fakePersister
	announcer *fakeAnnouncer
	operator  *fakeOperator
}

func newFixture() fixture {
	f := fixture{
		reg:       registry.New(zap.NewNop()),
		persister: &fakePersister{},
		announcer: &fakeAnnouncer{},
		operator:  &fakeOperator{},
	}
	f.engine = NewEngine(f.reg, f.persister, f.announcer, f.operator, zap.NewNop())
	return f
}

var answers = []string{"Maria Ivanova", "2", "03.07.2025", "Vitebsk", "+375447654321", "12.12.1995", "Female"}

func (f fixture) complete(t *testing.T, user model.UserID) Result {
	t.Helper()
	ctx := context.Background()
	_, err := f.engine.Handle(ctx, user, Begin())
	require.NoError(t, err)
	var res Result
	for _, a := range answers {
		res, err = f.engine.Handle(ctx, user, Answer(a, "masha"))
		require.NoError(t, err)
		require.NoError(t, res.Outcome.Err, "answer %q", a)
	}
	return res
}

func TestEngine_CommitsOnLastAnswer(t *testing.T) {
	f := newFixture()

	res := f.complete(t, 7)

	require.NotNil(t, res.Registration)
	assert.Equal(t, Idle, res.State)
	assert.Equal(t, "Maria Ivanova", res.Registration.Name)
	assert.Equal(t, "@masha", res.Registration.Handle)

	stored, ok := f.reg.ByUser(7)
	require.True(t, ok)
	assert.Equal(t, res.Registration.ID, stored.ID)

	assert.Equal(t, []syncer.Target{syncer.TargetRegistrations | syncer.TargetCounters}, f.persister.scheduled)
	assert.Len(t, f.announcer.announced, 1)
	assert.Empty(t, f.operator.alerts)
}

func TestEngine_NothingVisibleBeforeCommit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Handle(ctx, 1, Begin())
	require.NoError(t, err)
	for _, a := range answers[:len(answers)-1] {
		_, err = f.engine.Handle(ctx, 1, Answer(a, ""))
		require.NoError(t, err)
	}

	assert.Equal(t, AwaitGender, f.engine.State(1))
	assert.False(t, f.reg.IsRegistered(1))
	assert.Empty(t, f.persister.scheduled)
}

func TestEngine_AnnounceFailureKeepsRegistration(t *testing.T) {
	f := newFixture()
	f.announcer.err = errors.New("channel unreachable")

	res := f.complete(t, 9)

	require.NotNil(t, res.Registration)
	assert.True(t, f.reg.IsRegistered(9))
	require.Len(t, f.operator.alerts, 1)
	assert.Contains(t, f.operator.alerts[0], res.Registration.ID)
}

func TestEngine_RegisteredUserCannotBegin(t *testing.T) {
	f := newFixture()
	f.complete(t, 3)

	_, err := f.engine.Handle(context.Background(), 3, Begin())

	require.ErrorIs(t, err, model.ErrAlreadyRegistered)
	assert.Equal(t, Idle, f.engine.State(3))
}

func TestEngine_CancelDiscardsScratch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, _ = f.engine.Handle(ctx, 4, Begin())
	_, _ = f.engine.Handle(ctx, 4, Answer("Ivan Petrov", ""))
	res, err := f.engine.Handle(ctx, 4, Cancel())

	require.NoError(t, err)
	assert.True(t, res.Outcome.Cancelled)
	assert.False(t, f.engine.Active(4))
	assert.False(t, f.reg.IsRegistered(4))

	// A fresh run starts from the first question again.
	res, _ = f.engine.Handle(ctx, 4, Begin())
	assert.Equal(t, AwaitName, res.State)
}

func TestEngine_UsersAreIndependent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	for user := model.UserID(100); user < 120; user++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.engine.Handle(ctx, user, Begin())
			_, _ = f.engine.Handle(ctx, user, Answer("Name Surname", ""))
		}()
	}
	wg.Wait()

	for user := model.UserID(100); user < 120; user++ {
		assert.Equal(t, AwaitDays, f.engine.State(user))
	}
}
