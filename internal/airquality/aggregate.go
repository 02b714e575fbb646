package airquality

import "sort"

// HourBucket accumulates the samples that fall into one hour.
type HourBucket struct {
	HourStart   int64
	SampleCount int

	values map[Component][]float64
}

func newHourBucket(hourStart int64) *HourBucket {
	return &HourBucket{
		HourStart: hourStart,
		values:    make(map[Component][]float64),
	}
}

func (b *HourBucket) add(s Sample) {
	b.SampleCount++
	for c, v := range s.Components {
		b.values[c] = append(b.values[c], v)
	}
}

// Average returns the mean of a component over the samples that carried it.
// A component no sample carried is absent, not zero.
// Values are summed in sorted order so the result is independent of input order.
func (b *HourBucket) Average(c Component) (float64, bool) {
	vals := b.values[c]
	if len(vals) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted)), true
}

// Has reports whether at least one contributing sample carried the component.
func (b *HourBucket) Has(c Component) bool {
	return len(b.values[c]) > 0
}

// Buckets maps hour-start timestamps to their aggregated bucket.
type Buckets map[int64]*HourBucket

// Aggregate buckets samples by hour. Samples without components are ignored.
// The result does not depend on input order.
func Aggregate(samples []Sample) Buckets {
	buckets := make(Buckets)
	for _, s := range samples {
		if s.IsEmpty() {
			continue
		}
		key := HourStart(s.Timestamp)
		b, ok := buckets[key]
		if !ok {
			b = newHourBucket(key)
			buckets[key] = b
		}
		b.add(s)
	}
	return buckets
}

// AggregateWindow is Aggregate restricted to samples whose hour start lies in [from, to).
func AggregateWindow(samples []Sample, from, to int64) Buckets {
	in := make([]Sample, 0, len(samples))
	for _, s := range samples {
		h := HourStart(s.Timestamp)
		if h >= from && h < to {
			in = append(in, s)
		}
	}
	return Aggregate(in)
}

// Keys returns the bucket hour starts in ascending order.
func (b Buckets) Keys() []int64 {
	keys := make([]int64, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Average returns the component average of the bucket at hourStart, if any.
func (b Buckets) Average(hourStart int64, c Component) (float64, bool) {
	bucket, ok := b[hourStart]
	if !ok {
		return 0, false
	}
	return bucket.Average(c)
}
