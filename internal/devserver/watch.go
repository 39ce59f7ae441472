package devserver

import (
	"fmt"
	"net/http"
	"time"

	"seasoning/internal/logging"
)

const defaultWatchPollInterval = time.Second

type sessionWatchOptions struct {
	Sessions     *Store
	Logger       logging.Logger
	PollInterval time.Duration
}

// sessionWatchHandler streams a change event whenever the session's page
// moves to a new version, so the browser can refresh after server-side
// updates such as slideshow autoplay. Watching does not keep a session
// alive; the stream ends with a closed event once it is gone.
func sessionWatchHandler(opts sessionWatchOptions) http.Handler {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultWatchPollInterval
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		sess, ok := opts.Sessions.Get(id)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		last := sess.Page.Version()
		fmt.Fprintf(w, "event: ready\ndata: %d\n\n", last)
		flusher.Flush()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if !opts.Sessions.Has(id) {
					fmt.Fprint(w, "event: closed\ndata: expired\n\n")
					flusher.Flush()
					if opts.Logger != nil {
						opts.Logger.Printf("session watch %s: session closed", id)
					}
					return
				}
				if v := sess.Page.Version(); v != last {
					last = v
					fmt.Fprintf(w, "event: change\ndata: %d\n\n", v)
					flusher.Flush()
				}
			}
		}
	})
}
