/*
Package opamp implements the wire contract between a collector and this
control plane: decoding an AgentToServer heartbeat and encoding the
ServerToAgent response, both length-delimited protobuf messages per
https://opentelemetry.io/docs/specs/opamp/.

No generated protobuf code and no .proto file — wire.go hand-encodes the
handful of fields this server reads or writes via
google.golang.org/protobuf/encoding/protowire, the same low-level codec
the generated code itself would use underneath, just driven directly.
Field numbers are pinned to upstream opamp.proto so a real OpAMP collector
(not just this server's own test fixtures) can interoperate with it.
*/
package opamp
