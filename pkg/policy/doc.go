// Package policy checks plugin lists against Rego policies before they are written or
// after they are read.
//
// Every policy is a Rego module with a deny set. Each element is either a message
// string or an object with message, plugin and severity keys. Policies see an Input
// document describing the operation, the game's limits and every plugin:
//
//	{
//	  "operation": "write",
//	  "game": "fallout4",
//	  "limits": {"max_full_plugins": 254, "max_light_plugins": 4096},
//	  "plugins": [
//	    {"name": "Fallout4.esm", "state": "active", "priority": 0,
//	     "official": true, "master": true, "light": false}
//	  ]
//	}
//
// Built-in policies keep official files active, enforce the load order slot limits
// and warn about masters ordered after regular plugins. More policies can be loaded
// from .rego files; a leading "# severity: error" comment makes their violations
// blocking, the default is warning.
//
// Example:
//
//	engine, err := policy.NewEngine(ctx, logger)
//	if err != nil {
//		return err
//	}
//	result, err := engine.Evaluate(ctx, policy.NewInput(policy.OperationWrite, game, list.Entries()))
//	if err != nil {
//		return err
//	}
//	if err := result.Err(); err != nil {
//		return err
//	}
package policy
