package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/pricebox/games/priceguess"
)

const maxSetUploadSize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) error {
	return writeJSON(w, statusFor(err), priceguess.ErrorData{
		Code:    priceguess.ErrorCode(err),
		Message: err.Error(),
	})
}

func setID(p httprouter.Params) (int64, error) {
	id, err := strconv.ParseInt(p.ByName("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: set id must be a positive integer", priceguess.ErrValidation)
	}
	return id, nil
}

func serveListSets(cfg *Config, store *priceguess.Store, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		sets := store.List()
		if err := writeJSON(w, http.StatusOK, sets); err != nil {
			errs <- err

			return
		}

		logf(cfg, "SETS: Listed %d sets to %s in %s", len(sets), realIP(r), time.Since(startTime).Round(time.Microsecond))
	}
}

// serveGetSet returns a full definition, prices included, for editing.
func serveGetSet(cfg *Config, store *priceguess.Store, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(cfg, w)

		id, err := setID(p)
		if err == nil {
			var set *priceguess.ItemSet
			if set, err = store.Get(id); err == nil {
				err = writeJSON(w, http.StatusOK, set.Definition())
				if err != nil {
					errs <- err
				}
				return
			}
		}

		if err := writeError(w, err); err != nil {
			errs <- err
		}
	}
}

// serveSaveSet creates a set, or replaces one when the body carries an id.
func serveSaveSet(cfg *Config, store *priceguess.Store, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		var def priceguess.SetDefinition

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSetUploadSize))
		if err == nil {
			err = json.Unmarshal(body, &def)
		}
		if err != nil {
			if err := writeError(w, fmt.Errorf("%w: %v", priceguess.ErrValidation, err)); err != nil {
				errs <- err
			}
			return
		}

		updated := def.ID != 0

		set, err := store.Save(r.Context(), def)
		if err != nil {
			logf(cfg, "SETS: Rejected upload from %s: %v", realIP(r), err)
			if err := writeError(w, err); err != nil {
				errs <- err
			}
			return
		}

		status := http.StatusCreated
		if updated {
			status = http.StatusOK
		}

		if err := writeJSON(w, status, set.Summary()); err != nil {
			errs <- err

			return
		}

		logf(cfg, "SETS: Saved set %d (%s, %d items) from %s in %s",
			set.ID,
			set.Name,
			set.Len(),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveDeleteSet(cfg *Config, store *priceguess.Store, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(cfg, w)

		id, err := setID(p)
		if err == nil {
			err = store.Delete(r.Context(), id)
		}
		if err != nil {
			if err := writeError(w, err); err != nil {
				errs <- err
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)

		logf(cfg, "SETS: Deleted set %d for %s", id, realIP(r))
	}
}

func registerSets(cfg *Config, mux *httprouter.Router, store *priceguess.Store, errs chan<- error) {
	mux.GET(cfg.prefix+"/sets", serveListSets(cfg, store, errs))
	mux.POST(cfg.prefix+"/sets", serveSaveSet(cfg, store, errs))
	mux.GET(cfg.prefix+"/sets/:id", serveGetSet(cfg, store, errs))
	mux.DELETE(cfg.prefix+"/sets/:id", serveDeleteSet(cfg, store, errs))
}
