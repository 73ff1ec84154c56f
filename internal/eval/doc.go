// Package eval measures answer quality and safety for the chat pipeline.
//
// Quality runs labeled questions through the pipeline and has an LLM judge
// score each answer on two axes: relevance to the question and groundedness
// in the reference answer. Safety replays an adversarial question set and
// has the judge flag harmful output. Both runners bound concurrency and
// pace case starts so evaluation runs stay inside service rate limits.
package eval
