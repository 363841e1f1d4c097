package player

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

const scriptKey = "iframe_api"

// Page hosts the player script. It loads the script at most once at a time and
// caches the API after the first successful load, so every adapter on the page
// shares a single script.
type Page struct {
	script Script
	group  singleflight.Group

	mu  sync.RWMutex
	api API
}

// NewPage creates a page that loads the player API with the given script.
func NewPage(script Script) *Page {
	return &Page{script: script}
}

// API returns the loaded player API, loading it if needed. Concurrent callers
// share one in-flight load; a caller whose ctx ends stops waiting without
// failing the load for the others.
func (p *Page) API(ctx context.Context) (API, error) {
	p.mu.RLock()
	api := p.api
	p.mu.RUnlock()
	if api != nil {
		return api, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(scriptKey, func() (any, error) {
		p.mu.RLock()
		cached := p.api
		p.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		loaded, err := p.script.Load(loadCtx)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.api = loaded
		p.mu.Unlock()

		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load player script: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("load player script: %w", res.Err)
		}
		return res.Val.(API), nil
	}
}
