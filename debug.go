package bind

import "github.com/davecgh/go-spew/spew"

// Resolution is the full outcome of resolving one request.
type Resolution struct {
	Values Values
	Errors []FieldError
	// RawData is what the request carried, keyed by location ("query.id",
	// "header.id", "body"). It is kept when resolution fails.
	RawData map[string]any
}

func newResolution(r ResolverResult) *Resolution {
	return &Resolution{Values: r.Data, Errors: r.Errors, RawData: r.RawData}
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Dump renders the received raw data for debug logs.
func (r *Resolution) Dump() string {
	return dumpConfig.Sdump(r.RawData)
}
