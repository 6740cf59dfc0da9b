package headless

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-news-scraper/internal/scraper"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewChromedp(Config{MaxParallel: -1}); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	if _, err := NewChromedp(Config{NavigationTimeout: -time.Second}); err == nil {
		t.Fatal("expected error for negative navigation timeout")
	}

	renderer, err := NewChromedp(Config{MaxParallel: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, cap(renderer.limiter))
	assert.Equal(t, scraper.DefaultRenderTimeout, renderer.cfg.NavigationTimeout)

	renderer, err = NewChromedp(Config{})
	require.NoError(t, err)
	assert.Nil(t, renderer.limiter)
}

func TestAcquireHonoursContext(t *testing.T) {
	t.Parallel()

	renderer, err := NewChromedp(Config{MaxParallel: 1})
	require.NoError(t, err)
	require.NoError(t, renderer.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, renderer.acquire(ctx), context.DeadlineExceeded)

	renderer.release()
	require.NoError(t, renderer.acquire(context.Background()))
	renderer.release()
	renderer.release()
}

func TestNoopRendererDisabled(t *testing.T) {
	t.Parallel()

	links, err := NewNoop().RenderLinks(context.Background(), "https://a.test")
	require.ErrorIs(t, err, ErrDisabled)
	assert.Nil(t, links)
}

func TestRenderLinksIncludesScriptedAnchors(t *testing.T) {
	if _, err := exec.LookPath("google-chrome"); err != nil {
		if _, err := exec.LookPath("chromium"); err != nil {
			t.Skip("chrome not installed")
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body>
<a href="/static">static</a>
<script>
const a = document.createElement('a');
a.href = '/scripted';
document.body.appendChild(a);
</script>
</body></html>`)
	}))
	defer srv.Close()

	renderer, err := NewChromedp(Config{MaxParallel: 1, NavigationTimeout: 20 * time.Second})
	require.NoError(t, err)

	links, err := renderer.RenderLinks(context.Background(), srv.URL)
	if err != nil {
		t.Skipf("render failed: %v", err)
	}
	assert.Equal(t, []string{"/static", "/scripted"}, links)
}
