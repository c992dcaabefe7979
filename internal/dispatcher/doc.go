// Package dispatcher routes client commands to handlers.
//
// Commands are registered once at startup in a Registry, keyed by name.
// Each command decodes its positional JSON arguments into typed values
// before calling its handler, so argument errors are reported uniformly:
//
//	reg := dispatcher.NewRegistry()
//	reg.Register(dispatcher.Func1("tab::open", func(ctx context.Context, cid string) error {
//		return machine.OpenTab(ctx, cid)
//	}))
//	d := dispatcher.New(reg, dispatcher.DefaultConfig())
//	err := d.Dispatch(ctx, dispatcher.Request{Name: "tab::open", Args: args})
//
// Unknown names fail with ErrUnknownCommand, a wrong number of arguments
// with ErrArity and undecodable arguments with ErrArgument. Handler errors
// are returned wrapped in a *CommandError.
package dispatcher
