// Package httpapi exposes the versioning engine over HTTP: dataset
// refs, commit history, table reads and the async import job queue.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rowline/rowline/config"
	"github.com/rowline/rowline/log"
	"github.com/rowline/rowline/store"
	"github.com/rowline/rowline/tablereader"
)

type Handle struct {
	cfg    *config.Config
	db     *store.DB
	reader *tablereader.Reader
	bus    *Bus
	l      *slog.Logger
}

func New(cfg *config.Config, db *store.DB, reader *tablereader.Reader) *Handle {
	return &Handle{
		cfg:    cfg,
		db:     db,
		reader: reader,
		bus:    NewBus(),
		l:      log.New("httpapi"),
	}
}

// Bus exposes the job-event publisher so importworker (or a caller
// wiring the two together) can forward lifecycle notifications.
func (h *Handle) Bus() *Bus { return h.bus }

func (h *Handle) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.CORS)

	r.Route("/datasets/{datasetID}", func(r chi.Router) {
		r.Route("/refs", func(r chi.Router) {
			r.Get("/", h.ListRefs)
			r.Post("/", h.CreateRef)
			r.Get("/{ref}", h.GetRef)
			r.Delete("/{ref}", h.DeleteRef)
		})

		r.Get("/commits/{commitID}", h.GetCommit)
		r.Get("/commits/{commitID}/history", h.GetCommitHistory)
		r.Get("/commits/{commitID}/tables", h.ListTables)
		r.Get("/commits/{commitID}/tables/{tableKey}", h.GetTableSchema)
		r.Get("/commits/{commitID}/tables/{tableKey}/rows", h.GetTableData)
		r.Get("/commits/{commitID}/overview", h.GetOverview)

		r.Post("/imports", h.CreateImportJob)
		r.Get("/jobs/{jobID}", h.GetJobStatus)

		r.Get("/events", h.Events)
	})

	return r
}
