/*
Package params implements the parameter pipeline: it turns raw, untyped
key/value input into the typed, defaulted, validated Params an Action
handler receives, or into a structured PARAM_* failure.

For each declared input, in schema order: apply the default (literal or
producer), enforce Required, run the Formatter on the raw value, run the
Validator on the formatted value. The pipeline is a pure function; the
logging view (Redact) and the transport-edge hygiene (Clean) live here too
so every transport treats input identically.
*/
package params
