// Package analyst implements the conversational data-analyst agents: an
// LLM tool loop that answers questions against the user's warehouse, a
// report agent that fans analyses out over referenced questions and
// synthesizes the results, and the client-executed toolset both expose
// to the model.
package analyst
