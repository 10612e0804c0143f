// Package page adapts a live Rod page to the engine's View interface:
// navigation, scrolling, post extraction, health sampling, and in-place
// retry clicking.
package page

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"gleaner/engine"
)

// Selectors locates the timeline pieces in the DOM. The defaults track
// the current markup; overriding them beats redeploying when the site
// shuffles its test identifiers.
type Selectors struct {
	// Item matches one rendered post; ItemAlt is the fallback.
	Item    string
	ItemAlt string
	// Alert matches status and alert regions scanned for failure text.
	Alert string
	// Retry matches retry affordances, in priority order.
	Retry []string
}

// DefaultSelectors returns the selector set for the current markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:    `article[data-testid="tweet"]`,
		ItemAlt: `[data-testid="cellInnerDiv"] article`,
		Alert: `div[role="status"], div[role="alert"], div[aria-live="polite"],` +
			` div[role="dialog"], [data-testid="error"]`,
		Retry: []string{
			`[data-testid="Retry"]`,
			`[data-testid="retry"]`,
			`button[aria-label*="retry" i]`,
			`button[aria-label*="try again" i]`,
			`button[aria-label*="refresh" i]`,
			`button[aria-label*="reload" i]`,
			`button[aria-label*="muat ulang" i]`,
			`div[role="button"]`,
			`button`,
		},
	}
}

// View implements engine.View over a Rod page.
type View struct {
	page       *rod.Page
	baseURL    string
	sel        Selectors
	navTimeout time.Duration
	log        *slog.Logger
}

// NewView wraps an already-authenticated page.
func NewView(p *rod.Page, baseURL string, navTimeout time.Duration, log *slog.Logger) *View {
	return &View{
		page:       p,
		baseURL:    baseURL,
		sel:        DefaultSelectors(),
		navTimeout: navTimeout,
		log:        log,
	}
}

// SetSelectors overrides the default selector set.
func (v *View) SetSelectors(s Selectors) { v.sel = s }

// Navigate opens the URL and waits for the load event. A slow load is
// not fatal; extraction polls for content anyway.
func (v *View) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, v.navTimeout)
	defer cancel()

	if err := v.page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("page: navigate: %w", err)
	}
	if err := v.page.Context(navCtx).WaitLoad(); err != nil {
		v.log.Warn("page: load wait timed out", "url", url, "error", err)
	}
	return nil
}

// Reload refreshes the current page.
func (v *View) Reload(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, v.navTimeout)
	defer cancel()

	if err := v.page.Context(navCtx).Reload(); err != nil {
		return fmt.Errorf("page: reload: %w", err)
	}
	if err := v.page.Context(navCtx).WaitLoad(); err != nil {
		v.log.Warn("page: reload wait timed out", "error", err)
	}
	return nil
}

// Scroll advances the timeline to the bottom of the document.
func (v *View) Scroll(ctx context.Context) error {
	_, err := v.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	if err != nil {
		return fmt.Errorf("page: scroll: %w", err)
	}
	return nil
}

// Items extracts all posts currently rendered. Extraction runs as one
// in-page script so a 50-post timeline costs one round trip, not
// hundreds.
func (v *View) Items(ctx context.Context) ([]engine.Item, error) {
	res, err := v.page.Context(ctx).Eval(itemsJS, v.sel.Item, v.sel.ItemAlt)
	if err != nil {
		return nil, fmt.Errorf("page: extract items: %w", err)
	}

	now := time.Now().UTC()
	var items []engine.Item
	for _, entry := range res.Value.Arr() {
		raw := rawItem{
			Href:     entry.Get("href").Str(),
			Text:     entry.Get("text").Str(),
			Author:   entry.Get("author").Str(),
			Handle:   entry.Get("handle").Str(),
			Datetime: entry.Get("datetime").Str(),
			Location: entry.Get("location").Str(),
			Replies:  entry.Get("replies").Str(),
			Shares:   entry.Get("shares").Str(),
			Likes:    entry.Get("likes").Str(),
		}
		if it, ok := toItem(raw, v.baseURL, now); ok {
			items = append(items, it)
		}
	}
	return items, nil
}

// Signal samples the page for failure classification. Alert-region text
// is always collected; the full body text is added only when no posts
// are rendered, since failure pages replace the timeline entirely.
func (v *View) Signal(ctx context.Context) (engine.Signal, error) {
	res, err := v.page.Context(ctx).Eval(signalJS, v.sel.Item, v.sel.ItemAlt, v.sel.Alert, retryProbeSel)
	if err != nil {
		return engine.Signal{}, fmt.Errorf("page: signal: %w", err)
	}

	info, err := v.page.Context(ctx).Info()
	if err != nil {
		return engine.Signal{}, fmt.Errorf("page: info: %w", err)
	}

	return engine.Signal{
		PageText:  res.Value.Get("text").Str(),
		URL:       info.URL,
		ItemCount: int(res.Value.Get("count").Int()),
		HasRetry:  res.Value.Get("retry").Bool(),
	}, nil
}

// ClickRetry walks the retry selectors in priority order and clicks the
// first visible match. It never falls back to a reload; reloading
// resets the scroll position and forfeits the traversed timeline.
func (v *View) ClickRetry(ctx context.Context) (bool, error) {
	res, err := v.page.Context(ctx).Eval(clickRetryJS, v.sel.Retry)
	if err != nil {
		return false, fmt.Errorf("page: click retry: %w", err)
	}
	clicked := res.Value.Bool()
	if clicked {
		v.log.Info("page: clicked retry affordance")
	}
	return clicked, nil
}

// retryProbeSel is the selector the signal script uses to detect a
// visible retry affordance without clicking it. Only the specific
// selectors; the generic button fallbacks would match on every page.
const retryProbeSel = `[data-testid*="retry" i], button[aria-label*="retry" i],` +
	` button[aria-label*="try again" i], button[aria-label*="muat ulang" i]`

const itemsJS = `(itemSel, altSel) => {
	let nodes = document.querySelectorAll(itemSel);
	if (nodes.length === 0) nodes = document.querySelectorAll(altSel);

	const out = [];
	for (const el of nodes) {
		const entry = {href: '', text: '', author: '', handle: '',
			datetime: '', location: '', replies: '', shares: '', likes: ''};

		const textEl = el.querySelector('div[data-testid="tweetText"]');
		if (textEl) {
			entry.text = textEl.innerText;
		} else {
			entry.text = Array.from(el.querySelectorAll('div[lang]'))
				.map(n => n.innerText).join(' ');
		}

		for (const a of el.querySelectorAll('a[href*="/status/"]')) {
			const href = a.getAttribute('href') || '';
			const low = href.toLowerCase();
			if (low.includes('photo') || low.includes('video')) continue;
			entry.href = href;
			break;
		}

		const names = el.querySelector('div[data-testid="User-Name"], div[data-testid="User-Names"]');
		if (names) {
			const spans = names.querySelectorAll('span');
			if (spans.length > 0) entry.author = spans[0].innerText;
			for (const s of spans) {
				if (s.innerText.startsWith('@')) { entry.handle = s.innerText; break; }
			}
		}

		const timeEl = el.querySelector('time');
		if (timeEl) entry.datetime = timeEl.getAttribute('datetime') || '';

		const loc = el.querySelector('span[data-testid="UserLocation"]');
		if (loc) entry.location = loc.innerText;

		const metric = (testid) => {
			const btn = el.querySelector('[data-testid="' + testid + '"]');
			return btn ? btn.innerText.trim() : '';
		};
		entry.replies = metric('reply');
		entry.shares = metric('retweet');
		entry.likes = metric('like');

		out.push(entry);
	}
	return out;
}`

const signalJS = `(itemSel, altSel, alertSel, retrySel) => {
	let count = document.querySelectorAll(itemSel).length;
	if (count === 0) count = document.querySelectorAll(altSel).length;

	const chunks = [];
	for (const el of document.querySelectorAll(alertSel)) {
		const t = el.innerText;
		if (t) chunks.push(t);
	}
	if (count === 0 && document.body) {
		chunks.push(document.body.innerText.slice(0, 4000));
	}

	let retry = false;
	for (const el of document.querySelectorAll(retrySel)) {
		const r = el.getBoundingClientRect();
		if (r.width > 0 && r.height > 0) { retry = true; break; }
	}

	return {text: chunks.join('\n').toLowerCase(), count: count, retry: retry};
}`

const clickRetryJS = `(selectors) => {
	const phrases = ['retry', 'try again', 'refresh', 'reload', 'muat ulang', 'coba'];
	const matches = (el) => {
		const hay = ((el.innerText || '') + ' ' +
			(el.getAttribute('aria-label') || '') + ' ' +
			(el.getAttribute('data-testid') || '')).toLowerCase();
		return phrases.some(p => hay.includes(p));
	};
	const visible = (el) => {
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0 && !el.disabled;
	};
	for (const sel of selectors) {
		for (const el of document.querySelectorAll(sel)) {
			if (matches(el) && visible(el)) {
				el.click();
				return true;
			}
		}
	}
	return false;
}`
