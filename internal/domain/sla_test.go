package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/domain"
)

func TestTemplateValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validTemplate().Validate())
	})

	t.Run("zero resolution threshold", func(t *testing.T) {
		tmpl := validTemplate()
		tmpl.ResolutionThreshold = 0
		assert.Error(t, tmpl.Validate())
	})

	t.Run("zero escalation threshold", func(t *testing.T) {
		tmpl := validTemplate()
		tmpl.EscalationThreshold = 0
		assert.Error(t, tmpl.Validate())
	})

	t.Run("escalation at or past resolution", func(t *testing.T) {
		tmpl := validTemplate()
		tmpl.EscalationThreshold = tmpl.ResolutionThreshold
		assert.Error(t, tmpl.Validate())
	})
}

func TestClassify(t *testing.T) {
	tmpl := validTemplate() // escalation 8h, resolution 48h

	cases := []struct {
		elapsed time.Duration
		want    domain.SLAState
	}{
		{0, domain.SLAOnTrack},
		{8*time.Hour - time.Second, domain.SLAOnTrack},
		{8 * time.Hour, domain.SLAAtRisk}, // boundary is inclusive
		{47 * time.Hour, domain.SLAAtRisk},
		{48 * time.Hour, domain.SLABreached},
		{100 * time.Hour, domain.SLABreached},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tmpl.Classify(tc.elapsed), tc.elapsed.String())
	}
}

func TestTemplateForPriority(t *testing.T) {
	for _, p := range []domain.Priority{
		domain.PriorityCritical, domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow,
	} {
		tmpl, err := domain.TemplateForPriority(p)
		require.NoError(t, err, p)
		require.NoError(t, tmpl.Validate(), p)
	}

	// Tighter priorities escalate sooner.
	critical, _ := domain.TemplateForPriority(domain.PriorityCritical)
	low, _ := domain.TemplateForPriority(domain.PriorityLow)
	assert.Less(t, critical.EscalationThreshold, low.EscalationThreshold)

	_, err := domain.TemplateForPriority(domain.Priority("URGENT"))
	assert.Error(t, err)
}
