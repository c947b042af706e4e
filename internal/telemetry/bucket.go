package telemetry

import (
	"sort"
	"time"
)

// Point is the average of every reading that fell into one bucket. Metrics
// with no samples in the bucket are absent from Values.
type Point struct {
	Start   time.Time
	Values  map[Metric]float64
	Samples int
}

// Bucket groups readings into consecutive windows of width, aligned to
// width, and averages each metric per window. Missing values are skipped,
// not counted as zero. Points are returned oldest first; windows with no
// readings are omitted.
func Bucket(readings []Reading, width time.Duration) []Point {
	if width <= 0 || len(readings) == 0 {
		return nil
	}

	type acc struct {
		sum     map[Metric]float64
		count   map[Metric]int
		samples int
	}
	buckets := make(map[int64]*acc)

	for _, r := range readings {
		key := r.Timestamp.Truncate(width).UnixNano()
		a, ok := buckets[key]
		if !ok {
			a = &acc{sum: make(map[Metric]float64), count: make(map[Metric]int)}
			buckets[key] = a
		}
		a.samples++
		for metric, v := range r.Values {
			a.sum[metric] += v
			a.count[metric]++
		}
	}

	points := make([]Point, 0, len(buckets))
	for key, a := range buckets {
		p := Point{
			Start:   time.Unix(0, key).UTC(),
			Values:  make(map[Metric]float64, len(a.sum)),
			Samples: a.samples,
		}
		for metric, sum := range a.sum {
			p.Values[metric] = sum / float64(a.count[metric])
		}
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Start.Before(points[j].Start) })
	return points
}
