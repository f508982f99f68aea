// Package card defines the rank-card rendering contract: the Renderer
// interface, the textual fallback and the bounded avatar fetch.
package card

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stellarlinkco/levelbot/internal/store"
	"github.com/stellarlinkco/levelbot/internal/xp"
)

// ErrUnavailable signals the renderer cannot produce an image (missing font,
// asset or avatar). Callers answer with TextSummary instead.
var ErrUnavailable = errors.New("rank card rendering unavailable")

// Renderer turns a profile snapshot into image bytes. Pure given its inputs.
type Renderer interface {
	Render(p store.UserProfile, displayName string, avatar []byte) ([]byte, error)
}

// AvatarFetchTimeout bounds the avatar download, the only network hop on the
// rank-card path. On expiry the caller falls back to text.
const AvatarFetchTimeout = 5 * time.Second

// FetchAvatar downloads avatar bytes within AvatarFetchTimeout.
func FetchAvatar(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch avatar: no url")
	}
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithTimeout(ctx, AvatarFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build avatar request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch avatar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch avatar: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read avatar body: %w", err)
	}
	return data, nil
}

// TextSummary renders the profile as plain text, the fallback when Render
// fails or no renderer is configured.
func TextSummary(p store.UserProfile, displayName string) string {
	if displayName == "" {
		displayName = p.UserID
	}
	next := xp.ThresholdForLevel(p.Level)
	return fmt.Sprintf("%s — Level %d\nTotal XP: %d (%d chat / %d voice)\nNext level at %d XP",
		displayName, p.Level, p.TotalXP, p.ChatXP, p.VCXP, next)
}
