package signal

import "context"

// Static returns the same recommendation for every request. Used for dry
// runs and by tests.
type Static struct {
	Rec Recommendation
	Err error
}

func (s Static) Name() string { return "static" }

func (s Static) Recommend(ctx context.Context, req Request) (Recommendation, error) {
	if s.Err != nil {
		return Recommendation{}, s.Err
	}
	rec := s.Rec
	if rec.Signal == "" {
		rec.Signal = Hold
	}
	if rec.Decoder == "" {
		rec.Decoder = DecoderStatic
	}
	return rec, nil
}
