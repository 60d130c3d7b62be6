// Package analysis locates SMM artifacts in UEFI driver images.
// It scans data for protocol GUIDs, follows their code references and
// matches short instruction windows around them.
package analysis

// Window bounds, in decodable units. These were sized against real SMM
// drivers; see the locator tests for the layouts they must tolerate.
const (
	// SmstWindow bounds the backward search for the gSmst load.
	SmstWindow = 4

	// HandlerArgWindow bounds each backward search for a Register() argument.
	HandlerArgWindow = 12

	// FunctionStartWindow bounds the backward search for the ret that
	// precedes an unrecovered function.
	FunctionStartWindow = 100
)

// IdentifierSize is the size of an EFI_GUID in bytes.
const IdentifierSize = 16

// DataRegion is the section conventionally holding initialized globals.
const DataRegion = ".data"

// Names and types applied to recovered artifacts.
const (
	SmstPrefix    = "gSmst"
	SmstType      = "EFI_SMM_SYSTEM_TABLE2 *"
	SmstComment   = "EFI_SMM_SYSTEM_TABLE2 *gSmst;"
	HandlerPrefix = "SwSmiHandler"
)
