// Package monitor implements the gRPC transport for the escalation session.
//
// MonitorService has two unary methods carried on protobuf well-known types:
// GetState returns the current snapshot as a google.protobuf.Struct, and
// PushClassification feeds one classifier tick into the session. The service
// descriptor is declared by hand so no generated code is needed.
package monitor
