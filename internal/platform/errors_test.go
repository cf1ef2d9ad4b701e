package platform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		msg    string
		want   ErrorKind
	}{
		{"unauthorized", 401, "Bad credentials", KindAuth},
		{"forbidden", 403, "Resource not accessible by integration", KindAuth},
		{"secondary rate limit", 403, "You have exceeded a secondary rate limit", KindRateLimited},
		{"abuse", 403, "triggered an abuse detection mechanism", KindRateLimited},
		{"not found", 404, "Not Found", KindNotFound},
		{"too many requests", 429, "slow down", KindRateLimited},
		{"behind base", 405, "Head branch is out of date", KindBehindBase},
		{"gitlab rebase", 406, "Branch cannot be merged: need_rebase", KindBehindBase},
		{"other", 422, "Validation Failed", KindAPI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := classifyStatus(GitHub, "op", tt.status, tt.msg)
			assert.Equal(t, tt.want, e.Kind)
			assert.Equal(t, tt.status, e.StatusCode)
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("merge: %w", classifyStatus(GitLab, "merge", 404, "missing"))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsAuth(wrapped))

	u := unsupported(Azure, "diff")
	assert.True(t, IsUnsupported(u))
	assert.True(t, errors.Is(u, ErrUnsupported))
	assert.False(t, IsUnsupported(errors.New("plain")))

	assert.Equal(t, "gitlab: merge: HTTP 404: missing", classifyStatus(GitLab, "merge", 404, "missing").Error())
}
