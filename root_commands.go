package main

import (
	"sync"
	"sync/atomic"
)

// rootCommandHandler and the lazy-registration/dispatch machinery below are
// grounded on the teacher's own root_commands.go, trimmed from its ~25
// unrelated SaaS-provider subcommands down to this domain's actual command
// surface (orchestrate, bundle, doctor, compose, docker, version, help).
type rootCommandHandler func(cmd string, args []string)

var (
	rootCommandsMu      sync.Mutex
	rootCommandHandlers map[string]rootCommandHandler
	rootCommandsPtr     atomic.Pointer[map[string]rootCommandHandler]

	loadOrchestrateRootHandler = func() rootCommandHandler {
		return func(_ string, args []string) { cmdOrchestrate(args) }
	}
	loadBundleRootHandler = func() rootCommandHandler {
		return func(_ string, args []string) { cmdBundle(args) }
	}
	loadDoctorRootHandler = func() rootCommandHandler {
		return func(_ string, args []string) { cmdDoctor(args) }
	}
	loadComposeRootHandler = func() rootCommandHandler {
		return func(_ string, args []string) { cmdCompose(args) }
	}
	loadDockerRootHandler = func() rootCommandHandler {
		return func(_ string, args []string) { cmdDocker(args) }
	}
)

func dispatchRootCommand(cmd string, args []string) bool {
	handlers := getRootCommandHandlers()
	handler, ok := handlers[cmd]
	if !ok {
		return false
	}
	handler(cmd, args)
	return true
}

func buildRootCommandHandlers() map[string]rootCommandHandler {
	handlers := make(map[string]rootCommandHandler, 16)
	register := func(handler rootCommandHandler, names ...string) {
		for _, name := range names {
			handlers[name] = handler
		}
	}

	register(func(_ string, _ []string) { printVersion() }, "version", "--version", "-v")
	register(newLazyRootHandler(loadOrchestrateRootHandler), "orchestrate", "up")
	register(newLazyRootHandler(loadBundleRootHandler), "bundle")
	register(newLazyRootHandler(loadDoctorRootHandler), "doctor", "preflight")
	register(newLazyRootHandler(loadComposeRootHandler), "compose")
	register(newLazyRootHandler(loadDockerRootHandler), "docker")
	register(func(_ string, _ []string) { usage() }, "help", "-h", "--help")

	return handlers
}

func getRootCommandHandlers() map[string]rootCommandHandler {
	if ptr := rootCommandsPtr.Load(); ptr != nil {
		return *ptr
	}
	rootCommandsMu.Lock()
	defer rootCommandsMu.Unlock()
	if ptr := rootCommandsPtr.Load(); ptr != nil {
		return *ptr
	}
	if rootCommandHandlers == nil {
		handlers := buildRootCommandHandlers()
		rootCommandHandlers = handlers
		rootCommandsPtr.Store(&rootCommandHandlers)
	}
	return rootCommandHandlers
}

func resetRootCommandHandlersForTest() {
	rootCommandsMu.Lock()
	rootCommandHandlers = nil
	rootCommandsPtr.Store(nil)
	rootCommandsMu.Unlock()
}

func newLazyRootHandler(loader func() rootCommandHandler) rootCommandHandler {
	var (
		once    sync.Once
		handler rootCommandHandler
	)
	return func(cmd string, args []string) {
		once.Do(func() {
			handler = loader()
		})
		handler(cmd, args)
	}
}
