package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/platform/obs"
	"ice-route-service/internal/ports"
	"math"
	"net/http"
)

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Sources      []int       `json:"sources"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
	Units        string      `json:"units"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// Matrix requests an origins x destinations block from the ORS matrix
// endpoint in imperial units. Unroutable pairs come back as null and are
// reported with OK=false. ORS has no live traffic model, so opts.Traffic
// yields the same free-flow durations.
func (o *ORSMappingProvider) Matrix(
	ctx context.Context,
	origins []domain.Location,
	destinations []domain.Location,
	opts ports.MatrixOptions,
) (_ [][]ports.MatrixCell, err error) {
	defer obs.Time(ctx, "ors.Matrix")(&err)

	if len(origins) == 0 || len(destinations) == 0 {
		return [][]ports.MatrixCell{}, nil
	}

	locations := make([][]float64, 0, len(origins)+len(destinations))
	sources := make([]int, 0, len(origins))
	for _, l := range origins {
		if l.Coords == nil {
			return nil, fmt.Errorf("matrix: origin %q has no coordinates", l.Key())
		}
		sources = append(sources, len(locations))
		locations = append(locations, l.Coords.CoordsToList())
	}
	destIdx := make([]int, 0, len(destinations))
	for _, l := range destinations {
		if l.Coords == nil {
			return nil, fmt.Errorf("matrix: destination %q has no coordinates", l.Key())
		}
		destIdx = append(destIdx, len(locations))
		locations = append(locations, l.Coords.CoordsToList())
	}

	payload, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Sources:      sources,
		Destinations: destIdx,
		Metrics:      []string{"distance", "duration"},
		Units:        "mi",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal matrix request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, o.profile)
	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	if len(mr.Distances) != len(origins) || len(mr.Durations) != len(origins) {
		return nil, fmt.Errorf(
			"expected %d source rows; got distances=%d durations=%d",
			len(origins), len(mr.Distances), len(mr.Durations),
		)
	}

	out := make([][]ports.MatrixCell, len(origins))
	for i := range origins {
		rowDist, rowDur := mr.Distances[i], mr.Durations[i]
		if len(rowDist) != len(destinations) || len(rowDur) != len(destinations) {
			return nil, errors.New("matrix row lengths do not match destinations")
		}

		out[i] = make([]ports.MatrixCell, len(destinations))
		for j := range destinations {
			if rowDist[j] == nil || rowDur[j] == nil {
				continue
			}
			out[i][j] = ports.MatrixCell{
				DistanceMeters:  int(math.Round(*rowDist[j] * metersPerMile)),
				DurationSeconds: int(math.Round(*rowDur[j])),
				OK:              true,
			}
		}
	}

	return out, nil
}
