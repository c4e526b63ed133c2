package wordstat

var validDevices = map[string]struct{}{
	DeviceAll:     {},
	DeviceDesktop: {},
	DevicePhone:   {},
	DeviceTablet:  {},
}

var validPeriods = map[Period]struct{}{
	PeriodDaily:   {},
	PeriodWeekly:  {},
	PeriodMonthly: {},
}

// Validator checks request parameters against the vendor vocabularies and
// the region catalog. The region set is fixed at construction and shared
// read-only by every validation call.
type Validator struct {
	regions map[int64]struct{}
}

// NewValidator builds a Validator from a flattened region catalog.
func NewValidator(regions []Region) *Validator {
	return &Validator{regions: RegionIDSet(regions)}
}

// Period reports whether p is a known period value.
func (v *Validator) Period(p Period) error {
	if _, ok := validPeriods[p]; !ok {
		return &ValidationError{Field: "period", Value: string(p)}
	}
	return nil
}

// Devices reports whether every entry is a known device. An empty list is
// vacuously valid.
func (v *Validator) Devices(devices []string) error {
	for _, d := range devices {
		if _, ok := validDevices[d]; !ok {
			return &ValidationError{Field: "devices", Value: d}
		}
	}
	return nil
}

// Regions reports whether every id is present in the region catalog. An
// empty list is vacuously valid.
func (v *Validator) Regions(ids []int64) error {
	for _, id := range ids {
		if _, ok := v.regions[id]; !ok {
			return &ValidationError{Field: "regions", Value: id}
		}
	}
	return nil
}

// Validate checks all supplied parameters; absent ones are skipped. The
// period is treated as absent when empty.
func (v *Validator) Validate(period Period, regions []int64, devices []string) error {
	if period != "" {
		if err := v.Period(period); err != nil {
			return err
		}
	}
	if err := v.Devices(devices); err != nil {
		return err
	}
	return v.Regions(regions)
}
