// Package monitor implements the gRPC transport for the homee control API.
//
// The service homee.v1.MonitorService is described by hand with well-known
// protobuf types, so no generated code is needed: requests are Empty or
// BoolValue and every method answers with the status as a Struct.
package monitor
