package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/posture-alarm/internal/domain/classification"
	"github.com/oshokin/posture-alarm/internal/escalation"
)

// Service abstracts the session operations the transport depends on.
type Service interface {
	Snapshot() escalation.Snapshot
	Submit(ctx context.Context, result *classification.Result) error
}

// Server implements MonitorService.
type Server struct {
	// service is the running escalation session.
	service Service
}

// NewServer wires the provided service into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetState returns the current escalation snapshot.
func (s *Server) GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	state, err := SnapshotToStruct(s.service.Snapshot())
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode state")
	}

	return state, nil
}

// PushClassification feeds one tick into the session.
func (s *Server) PushClassification(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	result, err := StructToResult(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	err = s.service.Submit(ctx, result)

	switch {
	case err == nil:
		return new(emptypb.Empty), nil
	case errors.Is(err, classification.ErrInvalidClassification):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, escalation.ErrSessionClosed):
		return nil, status.Error(codes.Unavailable, "session is closed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, status.FromContextError(err).Err()
	default:
		return nil, status.Error(codes.Internal, "unable to submit tick")
	}
}

// ResultToStruct converts a tick to its wire form:
// {"predictions": [{"label": "...", "confidence": 0.9}, ...]}.
func ResultToStruct(result *classification.Result) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"predictions": predictionsToList(result),
	})
}

// StructToResult parses the wire form of a tick.
func StructToResult(in *structpb.Struct) (*classification.Result, error) {
	list := in.GetFields()["predictions"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: predictions list is required", classification.ErrInvalidClassification)
	}

	result := &classification.Result{
		Predictions: make([]classification.Prediction, 0, len(list.GetValues())),
	}

	for i, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()

		confidence, ok := fields["confidence"].GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: class %d has no numeric confidence", classification.ErrInvalidClassification, i)
		}

		result.Predictions = append(result.Predictions, classification.Prediction{
			Label:      fields["label"].GetStringValue(),
			Confidence: confidence.NumberValue,
		})
	}

	return result, nil
}

// SnapshotToStruct converts a snapshot to its wire form.
func SnapshotToStruct(snapshot escalation.Snapshot) (*structpb.Struct, error) {
	fields := map[string]any{
		"phase":          snapshot.Phase.String(),
		"relapse_count":  snapshot.RelapseCount,
		"color":          snapshot.Color.String(),
		"debounce_armed": snapshot.DebounceArmed,
		"blink_armed":    snapshot.BlinkArmed,
		"top_index":      snapshot.TopIndex,
		"relapses":       snapshot.Relapses,
		"notifications":  snapshot.Notifications,
		"predictions":    predictionsToList(snapshot.Result),
	}

	if !snapshot.UpdatedAt.IsZero() {
		fields["updated_at"] = snapshot.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	return structpb.NewStruct(fields)
}

func predictionsToList(result *classification.Result) []any {
	list := make([]any, 0, result.Len())
	if result == nil {
		return list
	}

	for _, p := range result.Predictions {
		list = append(list, map[string]any{
			"label":      p.Label,
			"confidence": p.Confidence,
		})
	}

	return list
}
