package airquality

// Interpolate estimates a component's value at target (an hour start) from the
// surrounding buckets. Only buckets carrying the component are considered, so
// a bucket with PM2.5 but no NO2 is never an NO2 neighbour.
//
// left is the nearest bucket at or before target, right the nearest strictly
// after. With both, the value is linear in elapsed time between them; with one,
// that neighbour's value is returned unchanged; with neither, ok is false.
func Interpolate(buckets Buckets, target int64, c Component) (float64, bool) {
	var (
		left, right         *HourBucket
		haveLeft, haveRight bool
	)

	for ts, b := range buckets {
		if !b.Has(c) {
			continue
		}
		if ts <= target {
			if !haveLeft || ts > left.HourStart {
				left, haveLeft = b, true
			}
			continue
		}
		if !haveRight || ts < right.HourStart {
			right, haveRight = b, true
		}
	}

	switch {
	case haveLeft && haveRight:
		lv, _ := left.Average(c)
		rv, _ := right.Average(c)
		frac := float64(target-left.HourStart) / float64(right.HourStart-left.HourStart)
		return lv + frac*(rv-lv), true
	case haveLeft:
		return left.Average(c)
	case haveRight:
		return right.Average(c)
	default:
		return 0, false
	}
}

// InterpolateEntry builds a series entry for target with every component
// interpolated independently. SampleCount is the number of real samples in the
// bucket at target, or zero when the slot is purely derived.
func InterpolateEntry(buckets Buckets, target int64) Entry {
	e := Entry{
		Time:   unixUTC(target),
		Values: make(map[Component]float64),
	}
	if b, ok := buckets[target]; ok {
		e.SampleCount = b.SampleCount
	}
	for _, c := range Components {
		if v, ok := Interpolate(buckets, target, c); ok {
			e.Values[c] = v
		}
	}
	return e
}
