// Package agent generates grounded travel advice from a composed prompt.
//
// # Backends
//
// New selects a backend from config.AgentConfig.Backend:
//
//   - vertex: Gemini on Vertex AI with a Vertex AI Search retrieval tool.
//     Citations are the retrieved-context URIs of the grounding chunks.
//   - ark: an eino chain (chat template -> Ark chat model). No citations.
//   - remote: any process serving travelmind.agent.v1.Agent over gRPC
//     (see RegisterServer and cmd/fake-agent).
//   - echo: repeats the user message; no external calls.
//
// Every backend receives the same system instruction (DefaultSystemPrompt or
// agent.system_prompt_file) and returns ErrEmptyResponse instead of an empty
// answer.
//
// # Wire format
//
// The gRPC service uses google.protobuf.Struct for both messages:
//
//	request:  {"prompt": "..."}
//	response: {"text": "...", "citations": ["gs://...", ...]}
package agent
