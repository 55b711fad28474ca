package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/lintang-b-s/roadgpkg/pkg/datastructure"
	"github.com/lintang-b-s/roadgpkg/pkg/roadnetwork"
	"github.com/lintang-b-s/roadgpkg/pkg/server/rest/service"
)

var (
	validate = validator.New()
	trans    ut.Translator
)

func init() {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ = uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(fmt.Sprintf("register validator translations: %v", err))
	}
}

type RoadNetworkService interface {
	Junctions(ctx context.Context) []*datastructure.Junction
	Junction(ctx context.Context, id string) (*datastructure.Junction, error)
	Segment(ctx context.Context, id string) (*datastructure.Segment, error)
	SegmentGeoJSON(ctx context.Context, id string) ([]byte, error)
	Lane(ctx context.Context, id string) (*datastructure.Lane, error)
	LaneConnections(ctx context.Context, laneID string) ([]datastructure.Connection, error)
	Metadata(ctx context.Context) map[string]string
	Stats(ctx context.Context) roadnetwork.Stats
}

type RoadNetworkHandler struct {
	svc RoadNetworkService
}

func RoadNetworkRouter(r *chi.Mux, svc RoadNetworkService) {
	handler := &RoadNetworkHandler{svc}

	r.Group(func(r chi.Router) {
		r.Route("/api", func(r chi.Router) {
			r.Get("/junctions", handler.ListJunctions)
			r.Get("/junctions/{id}", handler.GetJunction)
			r.Get("/segments/{id}", handler.GetSegment)
			r.Get("/segments/{id}/geojson", handler.GetSegmentGeoJSON)
			r.Get("/lanes/{id}", handler.GetLane)
			r.Get("/connections", handler.GetConnections)
			r.Get("/metadata", handler.GetMetadata)
		})
	})
}

type JunctionResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	SegmentIDs []string `json:"segment_ids"`
}

func renderJunction(j *datastructure.Junction) JunctionResponse {
	ids := make([]string, 0, len(j.Segments))
	for id := range j.Segments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return JunctionResponse{ID: j.ID, Name: j.Name, SegmentIDs: ids}
}

type JunctionsResponse struct {
	Junctions []JunctionResponse `json:"junctions"`
	Stats     roadnetwork.Stats  `json:"stats"`
}

func (h *RoadNetworkHandler) ListJunctions(w http.ResponseWriter, r *http.Request) {
	junctions := h.svc.Junctions(r.Context())
	resp := JunctionsResponse{
		Junctions: make([]JunctionResponse, 0, len(junctions)),
		Stats:     h.svc.Stats(r.Context()),
	}
	for _, j := range junctions {
		resp.Junctions = append(resp.Junctions, renderJunction(j))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *RoadNetworkHandler) GetJunction(w http.ResponseWriter, r *http.Request) {
	j, err := h.svc.Junction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, renderJunction(j))
}

// SegmentResponse lists lane ids from the rightmost lane to the leftmost lane.
type SegmentResponse struct {
	ID         string   `json:"id"`
	JunctionID string   `json:"junction_id"`
	Name       string   `json:"name"`
	LaneIDs    []string `json:"lane_ids"`
}

func (h *RoadNetworkHandler) GetSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := h.svc.Segment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	resp := SegmentResponse{
		ID:         seg.ID,
		JunctionID: seg.JunctionID,
		Name:       seg.Name,
		LaneIDs:    make([]string, 0, len(seg.Lanes)),
	}
	for _, lane := range seg.Lanes {
		resp.LaneIDs = append(resp.LaneIDs, lane.ID)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *RoadNetworkHandler) GetSegmentGeoJSON(w http.ResponseWriter, r *http.Request) {
	bb, err := h.svc.SegmentGeoJSON(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(bb)
}

type LaneEndResponse struct {
	LaneID string `json:"lane_id"`
	End    string `json:"end"`
}

func renderLaneEnd(le datastructure.LaneEnd) LaneEndResponse {
	return LaneEndResponse{LaneID: le.LaneID, End: le.End.String()}
}

func renderLaneEnds(m map[string]datastructure.LaneEnd) []LaneEndResponse {
	out := make([]LaneEndResponse, 0, len(m))
	for _, le := range m {
		out = append(out, renderLaneEnd(le))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LaneID < out[j].LaneID })
	return out
}

// LaneResponse model info
//
//	@Description	lane with its boundaries encoded as google polylines (y in the latitude slot)
type LaneResponse struct {
	ID            string            `json:"id"`
	SegmentID     string            `json:"segment_id"`
	Type          string            `json:"type"`
	Direction     string            `json:"direction"`
	Length        float64           `json:"length"`
	LeftBoundary  string            `json:"left_boundary"`
	RightBoundary string            `json:"right_boundary"`
	LeftLaneID    *string           `json:"left_lane_id"`
	RightLaneID   *string           `json:"right_lane_id"`
	Predecessors  []LaneEndResponse `json:"predecessors"`
	Successors    []LaneEndResponse `json:"successors"`
}

func RenderLaneResponse(lane *datastructure.Lane) *LaneResponse {
	return &LaneResponse{
		ID:            lane.ID,
		SegmentID:     lane.SegmentID,
		Type:          lane.Type,
		Direction:     lane.Direction,
		Length:        lane.Length(),
		LeftBoundary:  lane.Left.EncodePolyline(),
		RightBoundary: lane.Right.EncodePolyline(),
		LeftLaneID:    lane.LeftLaneID,
		RightLaneID:   lane.RightLaneID,
		Predecessors:  renderLaneEnds(lane.Predecessors),
		Successors:    renderLaneEnds(lane.Successors),
	}
}

func (h *RoadNetworkHandler) GetLane(w http.ResponseWriter, r *http.Request) {
	lane, err := h.svc.Lane(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, RenderLaneResponse(lane))
}

type ConnectionsRequest struct {
	LaneID string `validate:"required,max=256"`
}

// Bind reads lane_id from the query string. An undecodable query or a repeated lane_id is rejected.
func (c *ConnectionsRequest) Bind(r *http.Request) error {
	query, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return fmt.Errorf("malformed query: %w", err)
	}
	if ids := query["lane_id"]; len(ids) > 1 {
		return errors.New("lane_id given more than once")
	}
	c.LaneID = query.Get("lane_id")
	return nil
}

type ConnectionResponse struct {
	From LaneEndResponse `json:"from"`
	To   LaneEndResponse `json:"to"`
}

type ConnectionsResponse struct {
	Connections []ConnectionResponse `json:"connections"`
}

func (h *RoadNetworkHandler) GetConnections(w http.ResponseWriter, r *http.Request) {
	data := ConnectionsRequest{}
	if err := data.Bind(r); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := validate.Struct(data); err != nil {
		vv := translateError(err, trans)
		render.Render(w, r, ErrValidation(err, vv))
		return
	}

	conns, err := h.svc.LaneConnections(r.Context(), data.LaneID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	resp := ConnectionsResponse{Connections: make([]ConnectionResponse, 0, len(conns))}
	for _, c := range conns {
		resp.Connections = append(resp.Connections, ConnectionResponse{
			From: renderLaneEnd(c.From),
			To:   renderLaneEnd(c.To),
		})
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *RoadNetworkHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, h.svc.Metadata(r.Context()))
}

func (h *RoadNetworkHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrNotFound) {
		render.Render(w, r, ErrNotFoundRend(err))
		return
	}
	render.Render(w, r, ErrInternalServerErrorRend(errors.New("internal server error")))
}
