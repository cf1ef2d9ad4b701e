package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		statuses []CheckStatus
		want     CheckState
	}{
		{"no checks", nil, CheckSuccess},
		{"all success", []CheckStatus{{"ci", CheckSuccess}, {"lint", CheckSuccess}}, CheckSuccess},
		{"one pending", []CheckStatus{{"ci", CheckSuccess}, {"lint", CheckPending}}, CheckPending},
		{"failure wins over pending", []CheckStatus{{"ci", CheckPending}, {"lint", CheckFailure}}, CheckFailure},
		{"unknown counts as pending", []CheckStatus{{"ci", "queued"}}, CheckPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, AggregateChecks(tt.statuses))
		})
	}
}

func TestApprovedFromReviews(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reviews []Review
		want    bool
	}{
		{"no reviews", nil, false},
		{"single approval", []Review{{"ann", ReviewApproved}}, true},
		{"comment only", []Review{{"ann", ReviewCommented}}, false},
		{"changes requested blocks", []Review{{"ann", ReviewApproved}, {"bob", ReviewChangesRequested}}, false},
		{"later approval supersedes", []Review{{"bob", ReviewChangesRequested}, {"bob", ReviewApproved}}, true},
		{"comment keeps earlier verdict", []Review{{"ann", ReviewApproved}, {"ann", ReviewCommented}}, true},
		{"dismissed clears", []Review{{"ann", ReviewApproved}, {"ann", ReviewDismissed}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ApprovedFromReviews(tt.reviews))
		})
	}
}

func TestAllowedMergeMethods(t *testing.T) {
	t.Parallel()

	a := AllowedMergeMethods{Squash: true}
	assert.True(t, a.Allows(MethodSquash))
	assert.False(t, a.Allows(MethodMerge))
	assert.False(t, a.Allows(MethodRebase))
	assert.False(t, a.Allows(""))
}

func TestParseType(t *testing.T) {
	t.Parallel()

	for _, want := range Types {
		got, err := ParseType(string(want))
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for in, want := range map[string]Type{"GitHub": GitHub, "azure-devops": Azure, "AzureDevOps": Azure} {
		got, err := ParseType(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseType("gitea")
	assert.Error(t, err)
}
