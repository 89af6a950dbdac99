package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/pkg/engine"
	"github.com/novelforge/novelforge/pkg/events"
	"github.com/novelforge/novelforge/pkg/llm"
	"github.com/novelforge/novelforge/pkg/pipeline"
)

// blockingProvider stalls every call until its context dies, signalling the
// first call so the test can cancel mid-flight.
type blockingProvider struct {
	name    string
	started chan struct{}
	once    sync.Once
}

func (p *blockingProvider) Name() string { return p.name }

func (p *blockingProvider) Call(ctx context.Context, model, _, _ string, _ llm.CallOptions) (*llm.ProviderResult, error) {
	p.once.Do(func() { close(p.started) })
	<-ctx.Done()
	return nil, &llm.Error{Kind: llm.KindCancelled, Provider: p.name, Model: model, Err: ctx.Err()}
}

func TestCancellationDuringFanout(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	projectID := h.createProject(t)
	h.writeFixtureArtifact(t, projectID, pipeline.StepCharacterBibles, mustJSON(t, fixtureBibles()))
	h.writeFixtureArtifact(t, projectID, pipeline.StepSceneList, mustJSON(t, fixtureScenes()))

	blocker := &blockingProvider{name: "primary", started: make(chan struct{})}
	h.dsp.RegisterProvider("primary", blocker)
	h.dsp.RegisterProvider("backup", &blockingProvider{name: "backup", started: make(chan struct{})})

	errCh := make(chan error, 1)
	go func() {
		_, err := h.engine.ExecuteStep(context.Background(), projectID, pipeline.StepSceneBriefs)
		errCh <- err
	}()

	select {
	case <-blocker.started:
	case <-time.After(5 * time.Second):
		t.Fatal("fanout never reached the provider")
	}
	require.Eventually(t, func() bool { return h.engine.Busy(projectID) },
		time.Second, 10*time.Millisecond)

	require.True(t, h.engine.Cancel(projectID))

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Equal(t, engine.CodeCancelled, engine.CodeFor(err))
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled run did not return")
	}

	// A cancelled fanout writes nothing, even for sub-tasks that finished.
	_, err := h.engine.Artifact(projectID, pipeline.StepSceneBriefs)
	require.Error(t, err)

	report, err := h.engine.Status(projectID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", string(report.Project.Status))
	assert.False(t, h.engine.Busy(projectID))

	kinds := h.journalKinds(t, projectID)
	assert.Equal(t, 1, countKind(kinds, events.KindStepCancelled))
}
