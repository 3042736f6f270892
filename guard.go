package bind

// Guard runs before request resolution. Returning an error aborts the
// request with that error. Guards may set a status on ec.Response(); it
// takes precedence over declared response defaults.
type Guard func(ec *ExecutionContext) error

func runGuards(ec *ExecutionContext, guards []Guard) error {
	for _, g := range guards {
		if err := g(ec); err != nil {
			return err
		}
	}
	return nil
}
