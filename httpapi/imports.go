package httpapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rowline/rowline/jobqueue"
	"github.com/rowline/rowline/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// CreateImportJob accepts a multipart file upload, streams it to disk
// under the configured upload directory (path-joined with securejoin so
// a crafted filename cannot escape it) enforcing the configured max
// size incrementally rather than after buffering the whole file, and
// enqueues an import job against it.
func (h *Handle) CreateImportJob(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")

	// Cap the request body itself (with 1MiB of room for the multipart
	// framing) so an oversized upload fails while it is being read, not
	// after the multipart parser has taken in all of it.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Core.MaxUploadSize+(1<<20))

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, store.InvalidInput("invalid multipart upload: "+err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, store.InvalidInput("missing \"file\" field: "+err.Error()))
		return
	}
	defer file.Close()

	destName := uuid.New().String() + "-" + header.Filename
	destPath, err := securejoin.SecureJoin(h.cfg.Core.UploadDir, destName)
	if err != nil {
		writeError(w, store.Internal(err))
		return
	}

	if err := os.MkdirAll(h.cfg.Core.UploadDir, 0o755); err != nil {
		writeError(w, store.Storage(err))
		return
	}

	if err := streamToFile(file, destPath, h.cfg.Core.MaxUploadSize); err != nil {
		writeError(w, err)
		return
	}

	refName := r.URL.Query().Get("ref")
	if refName == "" {
		refName = h.cfg.Core.DefaultBranch
	}
	userID := r.URL.Query().Get("user_id")

	jobID, err := jobqueue.Enqueue(r.Context(), h.db, jobqueue.EnqueueRequest{
		DatasetID:  datasetID,
		RefName:    refName,
		UserID:     userID,
		SourcePath: destPath,
		RunParameters: map[string]any{
			"message":   r.URL.Query().Get("message"),
			"author_id": userID,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.bus.Publish(Event{Type: "job.queued", DatasetID: datasetID, JobID: jobID, At: time.Now().UTC()})
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// streamToFile copies src to destPath, aborting with KindInvalidInput
// the moment more than maxBytes have been written, instead of reading
// the whole body into memory before checking its size.
func streamToFile(src io.Reader, destPath string, maxBytes int64) error {
	out, err := os.Create(destPath)
	if err != nil {
		return store.Storage(err)
	}
	defer out.Close()

	limited := io.LimitReader(src, maxBytes+1)
	n, err := io.Copy(out, limited)
	if err != nil {
		return store.Storage(err)
	}
	if n > maxBytes {
		os.Remove(destPath)
		return store.InvalidInput("upload exceeds maximum size")
	}
	return nil
}

func (h *Handle) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := jobqueue.Status(r.Context(), h.db, chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Events upgrades to a websocket and streams job-lifecycle events for a
// dataset until the client disconnects or the request context ends.
func (h *Handle) Events(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.l.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch := h.bus.Subscribe()
	defer h.bus.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.DatasetID != datasetID {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, ev.marshal()); err != nil {
				return
			}
		}
	}
}
