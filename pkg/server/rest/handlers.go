package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"go.uber.org/zap"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/server/rest/service"
)

type NavigationService interface {
	ShortestPathETA(ctx context.Context, srcLat, srcLon, dstLat, dstLon float64) (service.ShortestPathResult, error)
	ManyToManyQuery(ctx context.Context, sources, targets []datastructure.Coordinate) (map[datastructure.Coordinate][]service.TargetResult, error)
}

type NavigationHandler struct {
	svc      NavigationService
	logger   *zap.Logger
	validate *validator.Validate
	trans    ut.Translator
}

func NavigatorRouter(r chi.Router, svc NavigationService, logger *zap.Logger) {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	validate := validator.New()
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	handler := &NavigationHandler{svc: svc, logger: logger, validate: validate, trans: trans}

	r.Route("/api/navigations", func(r chi.Router) {
		r.Post("/shortest-path", handler.ShortestPathETA)
		r.Post("/many-to-many", handler.ManyToManyQuery)
	})
}

type Coord struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

type ShortestPathRequest struct {
	SrcLat float64 `json:"src_lat" validate:"gte=-90,lte=90"`
	SrcLon float64 `json:"src_lon" validate:"gte=-180,lte=180"`
	DstLat float64 `json:"dst_lat" validate:"gte=-90,lte=90"`
	DstLon float64 `json:"dst_lon" validate:"gte=-180,lte=180"`
}

func (s *ShortestPathRequest) Bind(r *http.Request) error {
	return nil
}

type ShortestPathResponse struct {
	Path  string  `json:"path"`
	ETA   float64 `json:"eta"`  // minutes
	Dist  float64 `json:"dist"` // kilometers
	Nodes []Coord `json:"nodes,omitempty"`
	Found bool    `json:"found"`
}

func renderShortestPath(res service.ShortestPathResult, found bool) ShortestPathResponse {
	nodes := make([]Coord, 0, len(res.Route))
	for _, c := range res.Route {
		nodes = append(nodes, Coord{Lat: c.Lat, Lon: c.Lon})
	}
	return ShortestPathResponse{
		Path:  res.Polyline,
		ETA:   res.ETA,
		Dist:  res.Dist / 1000,
		Nodes: nodes,
		Found: found,
	}
}

func (h *NavigationHandler) ShortestPathETA(w http.ResponseWriter, r *http.Request) {
	data := &ShortestPathRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := h.validate.Struct(*data); err != nil {
		render.Render(w, r, ErrValidation(err, translateError(err, h.trans)))
		return
	}

	res, err := h.svc.ShortestPathETA(r.Context(), data.SrcLat, data.SrcLon, data.DstLat, data.DstLon)
	if err != nil {
		render.Render(w, r, h.errorResponse(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, renderShortestPath(res, true))
}

type ManyToManyQueryRequest struct {
	Sources []Coord `json:"sources" validate:"required,min=1,dive"`
	Targets []Coord `json:"targets" validate:"required,min=1,dive"`
}

func (s *ManyToManyQueryRequest) Bind(r *http.Request) error {
	if len(s.Sources) == 0 || len(s.Targets) == 0 {
		return errors.New("sources and targets must not be empty")
	}
	return nil
}

type ManyToManyTarget struct {
	Target Coord `json:"target"`
	ShortestPathResponse
}

type ManyToManyResult struct {
	Source  Coord              `json:"source"`
	Targets []ManyToManyTarget `json:"targets"`
}

type ManyToManyQueryResponse struct {
	Results []ManyToManyResult `json:"results"`
}

func (h *NavigationHandler) ManyToManyQuery(w http.ResponseWriter, r *http.Request) {
	data := &ManyToManyQueryRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := h.validate.Struct(*data); err != nil {
		render.Render(w, r, ErrValidation(err, translateError(err, h.trans)))
		return
	}

	sources := make([]datastructure.Coordinate, len(data.Sources))
	for i, c := range data.Sources {
		sources[i] = datastructure.NewCoordinate(c.Lat, c.Lon)
	}
	targets := make([]datastructure.Coordinate, len(data.Targets))
	for i, c := range data.Targets {
		targets[i] = datastructure.NewCoordinate(c.Lat, c.Lon)
	}

	res, err := h.svc.ManyToManyQuery(r.Context(), sources, targets)
	if err != nil {
		render.Render(w, r, h.errorResponse(err))
		return
	}

	resp := ManyToManyQueryResponse{Results: make([]ManyToManyResult, 0, len(sources))}
	seen := make(map[datastructure.Coordinate]bool, len(sources))
	for _, src := range sources {
		if seen[src] {
			continue
		}
		seen[src] = true
		result := ManyToManyResult{Source: Coord{Lat: src.Lat, Lon: src.Lon}}
		for _, tr := range res[src] {
			result.Targets = append(result.Targets, ManyToManyTarget{
				Target:               Coord{Lat: tr.TargetCoord.Lat, Lon: tr.TargetCoord.Lon},
				ShortestPathResponse: renderShortestPath(tr.ShortestPathResult, tr.Found),
			})
		}
		resp.Results = append(resp.Results, result)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *NavigationHandler) errorResponse(err error) render.Renderer {
	switch pkg.CodeOf(err) {
	case pkg.ErrNotFound:
		return ErrNotFound(err)
	case pkg.ErrBadParamInput:
		return ErrInvalidRequest(err)
	default:
		h.logger.Error("navigation request failed", zap.Error(err))
		return ErrInternalServerErrorRend(errors.New("internal server error"))
	}
}
