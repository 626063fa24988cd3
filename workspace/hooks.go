package workspace

import "github.com/sarchlab/cosim/sim/hooking"

// Workspace hook positions. Item is the component unless noted.
var (
	HookPosComponentAdded   = &hooking.HookPos{Name: "ComponentAdded"}
	HookPosComponentRemoved = &hooking.HookPos{Name: "ComponentRemoved"}

	// HookPosWorkspaceCleared fires once after Clear, with no Item.
	HookPosWorkspaceCleared = &hooking.HookPos{Name: "WorkspaceCleared"}
)

// Updater hook positions. Item is the iteration number unless noted.
var (
	HookPosUpdatingStarted  = &hooking.HookPos{Name: "UpdatingStarted"}
	HookPosUpdatingFinished = &hooking.HookPos{Name: "UpdatingFinished"}
	HookPosTickStarted      = &hooking.HookPos{Name: "TickStarted"}
	HookPosCouplingsUpdated = &hooking.HookPos{Name: "CouplingsUpdated"}
	HookPosTickCompleted    = &hooking.HookPos{Name: "TickCompleted"}

	// Item is the component.
	HookPosBeforeComponentUpdate = &hooking.HookPos{Name: "BeforeComponentUpdate"}
	HookPosAfterComponentUpdate  = &hooking.HookPos{Name: "AfterComponentUpdate"}

	// Item is the component and Detail the *ComponentError.
	HookPosComponentError = &hooking.HookPos{Name: "ComponentError"}

	// Item is the new controller.
	HookPosControllerChanged = &hooking.HookPos{Name: "ControllerChanged"}

	// Item is the new number of threads.
	HookPosThreadsChanged = &hooking.HookPos{Name: "ThreadsChanged"}
)
