// Package opamp implements the agent-management endpoint's wire layer:
// the subset of the OpAMP protocol
// (https://opentelemetry.io/docs/specs/opamp/) this control plane's HTTP
// handler speaks, hand-encoded via
// google.golang.org/protobuf/encoding/protowire rather than generated
// from a .proto file: the server only ever needs a handful of fields out
// of OpAMP's full message set.
package opamp

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers below mirror the upstream opamp.proto definitions for the
// messages and fields this server actually reads or writes. Anything not
// listed here (sequence_num, health, packages_available, connection
// settings, ...) is silently skipped on decode and never emitted on
// encode.
const (
	fieldAgentToServerInstanceUID         = 1
	fieldAgentToServerAgentDescription    = 3
	fieldAgentToServerCapabilities        = 4
	fieldAgentToServerRemoteConfigStatus  = 7

	fieldAgentDescriptionIdentifyingAttrs = 1

	fieldKeyValueKey   = 1
	fieldKeyValueValue = 2

	fieldAnyValueStringValue = 1

	fieldRemoteConfigStatusLastHash = 1

	fieldServerToAgentInstanceUID   = 1
	fieldServerToAgentRemoteConfig  = 3
	fieldServerToAgentCapabilities  = 7

	fieldAgentRemoteConfigConfig     = 1
	fieldAgentRemoteConfigConfigHash = 2

	fieldAgentConfigMapConfigMap = 1

	fieldConfigMapEntryKey   = 1
	fieldConfigMapEntryValue = 2

	fieldAgentConfigFileBody        = 1
	fieldAgentConfigFileContentType = 2
)

// AgentToServer is the decoded subset of a collector's heartbeat.
type AgentToServer struct {
	InstanceUID           []byte
	IdentifyingAttributes map[string]string
	Capabilities          uint64
	// LastRemoteConfigHash is the hash of the config the agent reports
	// currently running, nil if it has never applied one.
	LastRemoteConfigHash []byte
}

// ServerToAgent is what this server sends back.
type ServerToAgent struct {
	InstanceUID  []byte
	Capabilities uint64
	// RemoteConfig is nil when the agent does not report
	// AcceptsRemoteConfig; a pkg/pipelineconfig.NopConfig is still sent as a
	// RemoteConfig.
	RemoteConfig *RemoteConfig
}

// RemoteConfig wraps a synthesized collector config with the content-type
// and hash OpAMP's wire format requires.
type RemoteConfig struct {
	Body        []byte
	ContentType string
	Hash        []byte
}

// DecodeAgentToServer parses a length-delimited AgentToServer protobuf
// message. It is lenient about unknown fields (forward compatible with a
// newer collector) but strict about malformed wire bytes.
func DecodeAgentToServer(data []byte) (*AgentToServer, error) {
	msg := &AgentToServer{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("decode AgentToServer: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldAgentToServerInstanceUID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("decode instance_uid: %w", protowire.ParseError(n))
			}
			msg.InstanceUID = append([]byte(nil), v...)
			data = data[n:]

		case num == fieldAgentToServerCapabilities && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("decode capabilities: %w", protowire.ParseError(n))
			}
			msg.Capabilities = v
			data = data[n:]

		case num == fieldAgentToServerAgentDescription && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("decode agent_description: %w", protowire.ParseError(n))
			}
			attrs, err := decodeAgentDescription(v)
			if err != nil {
				return nil, err
			}
			msg.IdentifyingAttributes = attrs
			data = data[n:]

		case num == fieldAgentToServerRemoteConfigStatus && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("decode remote_config_status: %w", protowire.ParseError(n))
			}
			hash, err := decodeRemoteConfigStatus(v)
			if err != nil {
				return nil, err
			}
			msg.LastRemoteConfigHash = hash
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("decode AgentToServer: skip unknown field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	return msg, nil
}

func decodeAgentDescription(data []byte) (map[string]string, error) {
	attrs := make(map[string]string)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("decode AgentDescription: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num == fieldAgentDescriptionIdentifyingAttrs && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("decode identifying_attributes: %w", protowire.ParseError(n))
			}
			key, val, err := decodeKeyValue(v)
			if err != nil {
				return nil, err
			}
			attrs[key] = val
			data = data[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, fmt.Errorf("decode AgentDescription: skip unknown field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
	}

	return attrs, nil
}

func decodeKeyValue(data []byte) (key, value string, err error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", "", fmt.Errorf("decode KeyValue: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldKeyValueKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", "", fmt.Errorf("decode KeyValue.key: %w", protowire.ParseError(n))
			}
			key = string(v)
			data = data[n:]

		case num == fieldKeyValueValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", "", fmt.Errorf("decode KeyValue.value: %w", protowire.ParseError(n))
			}
			value, err = decodeAnyValueString(v)
			if err != nil {
				return "", "", err
			}
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return "", "", fmt.Errorf("decode KeyValue: skip unknown field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return key, value, nil
}

// decodeAnyValueString reads only the string_value arm of AnyValue's
// oneof; every identifying attribute this server cares about
// (hdx.shard_id, host.name, ...) is a string.
func decodeAnyValueString(data []byte) (string, error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", fmt.Errorf("decode AnyValue: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num == fieldAnyValueStringValue && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return "", fmt.Errorf("decode AnyValue.string_value: %w", protowire.ParseError(n))
			}
			return string(v), nil
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return "", fmt.Errorf("decode AnyValue: skip unknown field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return "", nil
}

func decodeRemoteConfigStatus(data []byte) ([]byte, error) {
	var hash []byte
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("decode RemoteConfigStatus: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num == fieldRemoteConfigStatusLastHash && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("decode last_remote_config_hash: %w", protowire.ParseError(n))
			}
			hash = append([]byte(nil), v...)
			data = data[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, fmt.Errorf("decode RemoteConfigStatus: skip unknown field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return hash, nil
}

// EncodeServerToAgent serializes msg to a length-delimited ServerToAgent
// protobuf message.
func EncodeServerToAgent(msg *ServerToAgent) []byte {
	var b []byte

	if len(msg.InstanceUID) > 0 {
		b = protowire.AppendTag(b, fieldServerToAgentInstanceUID, protowire.BytesType)
		b = protowire.AppendBytes(b, msg.InstanceUID)
	}

	if msg.Capabilities != 0 {
		b = protowire.AppendTag(b, fieldServerToAgentCapabilities, protowire.VarintType)
		b = protowire.AppendVarint(b, msg.Capabilities)
	}

	if msg.RemoteConfig != nil {
		inner := encodeAgentRemoteConfig(msg.RemoteConfig)
		b = protowire.AppendTag(b, fieldServerToAgentRemoteConfig, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}

	return b
}

func encodeAgentRemoteConfig(rc *RemoteConfig) []byte {
	var b []byte

	configMap := encodeAgentConfigMap(rc)
	b = protowire.AppendTag(b, fieldAgentRemoteConfigConfig, protowire.BytesType)
	b = protowire.AppendBytes(b, configMap)

	if len(rc.Hash) > 0 {
		b = protowire.AppendTag(b, fieldAgentRemoteConfigConfigHash, protowire.BytesType)
		b = protowire.AppendBytes(b, rc.Hash)
	}

	return b
}

// encodeAgentConfigMap emits a single config_map entry under the empty
// key "", the convention OpAMP collectors use for "the whole config" when
// a server doesn't split config across named files.
func encodeAgentConfigMap(rc *RemoteConfig) []byte {
	var file []byte
	file = protowire.AppendTag(file, fieldAgentConfigFileBody, protowire.BytesType)
	file = protowire.AppendBytes(file, rc.Body)
	file = protowire.AppendTag(file, fieldAgentConfigFileContentType, protowire.BytesType)
	file = protowire.AppendBytes(file, []byte(rc.ContentType))

	var entry []byte
	entry = protowire.AppendTag(entry, fieldConfigMapEntryKey, protowire.BytesType)
	entry = protowire.AppendBytes(entry, []byte(""))
	entry = protowire.AppendTag(entry, fieldConfigMapEntryValue, protowire.BytesType)
	entry = protowire.AppendBytes(entry, file)

	var b []byte
	b = protowire.AppendTag(b, fieldAgentConfigMapConfigMap, protowire.BytesType)
	b = protowire.AppendBytes(b, entry)
	return b
}
