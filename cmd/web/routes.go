package main

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/box-league-engine/internal/config"
	"github.com/AdamBeresnev/box-league-engine/internal/httputil"
	"github.com/AdamBeresnev/box-league-engine/internal/middleware"
	"github.com/AdamBeresnev/box-league-engine/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type application struct {
	competitions *service.CompetitionService
	matches      *service.MatchService
	standings    *service.StandingsService
}

func newRouter(app *application, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.TimeoutBudgetHeader},
			ExposedHeaders: []string{chimiddleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.TimeoutBudget(cfg.OperationTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, r, "no route for "+r.Method+" "+r.URL.Path)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/competitions", func(r chi.Router) {
		r.Get("/", app.listCompetitions)
		r.Post("/", app.createCompetition)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.getSnapshot)
			r.Post("/open", app.openRegistration)
			r.Post("/participants", app.enroll)
			r.Post("/participants/{pid}/withdraw", app.withdraw)
			r.Post("/start", app.start)
			r.Post("/rounds", app.generateRound)
			r.Post("/advance", app.advanceRound)
			r.Get("/rounds/{n}/complete", app.checkRoundCompletion)
			r.Post("/playoffs", app.startPlayoffs)
			r.Post("/complete", app.complete)
			r.Post("/cancel", app.cancel)
			r.Get("/boxes", app.getBoxStructure)
			r.Get("/boxes/{boxId}/standings", app.getBoxStandings)
			r.Get("/bracket", app.getBracket)
		})
	})

	r.Route("/matches/{id}", func(r chi.Router) {
		r.Get("/", app.getMatch)
		r.Post("/start", app.startMatch)
		r.Post("/result", app.recordResult)
	})

	return r
}

// uuidParam parses a UUID path parameter, answering 400 when it is malformed.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, r, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// respond writes v, or the error when err is set.
func respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		httputil.Error(w, r, err)
		return
	}
	httputil.WriteJSON(w, status, v)
}

func (app *application) listCompetitions(w http.ResponseWriter, r *http.Request) {
	competitions, err := app.competitions.ListCompetitions(r.Context())
	respond(w, r, http.StatusOK, competitions, err)
}

func (app *application) createCompetition(w http.ResponseWriter, r *http.Request) {
	// Settings fields missing from the body keep their defaults.
	settings := app.competitions.Defaults()
	input := service.CreateInput{Settings: &settings}
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, r, err)
		return
	}
	c, err := app.competitions.CreateCompetition(r.Context(), input)
	respond(w, r, http.StatusCreated, c, err)
}

func (app *application) getSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	snapshot, err := app.standings.Snapshot(r.Context(), id)
	respond(w, r, http.StatusOK, snapshot, err)
}

func (app *application) openRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	c, err := app.competitions.OpenRegistration(r.Context(), id)
	respond(w, r, http.StatusOK, c, err)
}

func (app *application) enroll(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var input service.EnrollInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, r, err)
		return
	}
	p, err := app.competitions.Enroll(r.Context(), id, input)
	respond(w, r, http.StatusCreated, p, err)
}

func (app *application) withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	participantID, ok := uuidParam(w, r, "pid")
	if !ok {
		return
	}
	p, err := app.competitions.Withdraw(r.Context(), id, participantID)
	respond(w, r, http.StatusOK, p, err)
}

func (app *application) start(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	result, err := app.competitions.Start(r.Context(), id)
	respond(w, r, http.StatusOK, result, err)
}

type generateRoundRequest struct {
	Round int `json:"round"`
}

func (app *application) generateRound(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req generateRoundRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if req.Round < 0 {
		httputil.BadRequest(w, r, "round must not be negative", nil)
		return
	}
	result, err := app.competitions.GenerateRound(r.Context(), id, req.Round)
	respond(w, r, http.StatusCreated, result, err)
}

func (app *application) advanceRound(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	expected := 0
	if raw := r.URL.Query().Get("expected_round"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.BadRequest(w, r, "Invalid expected_round", err)
			return
		}
		expected = n
	}
	result, err := app.competitions.AdvanceRound(r.Context(), id, expected)
	respond(w, r, http.StatusOK, result, err)
}

func (app *application) checkRoundCompletion(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || number < 1 {
		httputil.BadRequest(w, r, "Invalid round number", err)
		return
	}
	completion, err := app.competitions.CheckRoundCompletion(r.Context(), id, number)
	respond(w, r, http.StatusOK, completion, err)
}

func (app *application) startPlayoffs(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	result, err := app.competitions.StartPlayoffs(r.Context(), id)
	respond(w, r, http.StatusOK, result, err)
}

func (app *application) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	c, err := app.competitions.Complete(r.Context(), id)
	respond(w, r, http.StatusOK, c, err)
}

func (app *application) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	c, err := app.competitions.Cancel(r.Context(), id)
	respond(w, r, http.StatusOK, c, err)
}

func (app *application) getBoxStructure(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	boxes, err := app.standings.GetBoxStructure(r.Context(), id)
	respond(w, r, http.StatusOK, boxes, err)
}

func (app *application) getBoxStandings(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	boxID, ok := uuidParam(w, r, "boxId")
	if !ok {
		return
	}
	table, err := app.standings.GetBoxStandings(r.Context(), id, boxID)
	respond(w, r, http.StatusOK, table, err)
}

func (app *application) getBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	b, err := app.standings.GetBracket(r.Context(), id)
	respond(w, r, http.StatusOK, b, err)
}

func (app *application) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	m, err := app.matches.GetMatch(r.Context(), id)
	respond(w, r, http.StatusOK, m, err)
}

func (app *application) startMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	m, err := app.matches.StartMatch(r.Context(), id)
	respond(w, r, http.StatusOK, m, err)
}

func (app *application) recordResult(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var input service.ResultInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, r, err)
		return
	}
	m, err := app.matches.RecordResult(r.Context(), id, input)
	respond(w, r, http.StatusOK, m, err)
}
