package llm

// Prompts for the two classification passes and the summarizer. Each asks
// for a bare JSON object so ParseResult can pick it out of the completion.

// SegregationPrompt classifies a raw alert from its subject and body.
const SegregationPrompt = `You are an IT operations alert classifier. Read the alert email below and
respond with a single JSON object and nothing else, with these keys:
  "priority":           one of "P1", "P2", "P3", "Informational", "NA"
  "type":               "actionable" or "informational"
  "trigger_name":       the monitoring trigger that fired
  "resource_name":      the host or object the alert concerns
  "generated_summary":  one sentence describing what happened
  "recommended_action": one sentence describing the next step, or "N/A"

Alert email:
`

// TriggerPrompt refines a classification from the trigger name alone,
// against the trigger knowledge base excerpt appended after the input.
const TriggerPrompt = `You are an IT operations alert classifier. Given the trigger name below and
the reference rows that follow, respond with a single JSON object and
nothing else, with these keys:
  "priority":           one of "P1", "P2", "P3", "Informational", "NA"
  "type":               "actionable" or "informational"
  "recommended_action": the recommended action for this trigger, or "N/A"

`

// SummarizePrompt condenses an alert into a ticket description.
const SummarizePrompt = `You are an IT operations assistant. Summarize the alert email below for an
incident ticket in at most three sentences: what fired, on which resource,
and what the operator should do first. Respond with the summary text only.

Alert email:
`
