// Package labwire models the request/response Parameters resources used
// by the FHIRPath Lab "$fhirpath" operation (fhir.forms-lab.com), so a
// host application can translate between that wire protocol and this
// module's Expression/Collection types. It is a data-model layer only —
// no HTTP handler — grounded in how lschmierer-fhirpath-lab-go's
// backend builds and reads the same Parameters shape.
package labwire

import (
	"encoding/json"

	"github.com/gofhirpath/fhirpath/pkg/common"
	"github.com/gofhirpath/fhirpath/pkg/fhirpath/types"
)

// EvalRequest is the decoded form of the operation's input Parameters:
// expression (required), an optional context sub-expression, the
// resource to evaluate against, and named variables.
type EvalRequest struct {
	Expression string
	Context    string
	Resource   json.RawMessage
	Variables  map[string]string
}

// Variable is one entry of the request's "variables" multipart parameter.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// wireParameter mirrors one FHIR Parameters.parameter entry for the
// subset of shapes this operation uses: a flat valueString, or a part
// list for "resource", "variables", and "result".
type wireParameter struct {
	Name        string          `json:"name"`
	ValueString *string         `json:"valueString,omitempty"`
	Resource    json.RawMessage `json:"resource,omitempty"`
	Part        []wireParameter `json:"part,omitempty"`
}

type wireParameters struct {
	ResourceType string          `json:"resourceType"`
	Parameter    []wireParameter `json:"parameter"`
}

// DecodeEvalRequest parses a FHIR Parameters JSON payload into an
// EvalRequest.
func DecodeEvalRequest(body []byte) (*EvalRequest, error) {
	var wp wireParameters
	if err := json.Unmarshal(body, &wp); err != nil {
		return nil, common.WrapPathf("Parameters", "%w: %v", common.ErrInvalidJSON, err)
	}
	req := &EvalRequest{Variables: map[string]string{}}
	for _, p := range wp.Parameter {
		switch p.Name {
		case "expression":
			if p.ValueString != nil {
				req.Expression = *p.ValueString
			}
		case "context":
			if p.ValueString != nil {
				req.Context = *p.ValueString
			}
		case "resource":
			req.Resource = p.Resource
		case "variables":
			for _, v := range p.Part {
				if v.ValueString != nil {
					req.Variables[v.Name] = *v.ValueString
				}
			}
		}
	}
	if req.Expression == "" {
		return nil, common.WrapPath("parameter[name=expression]", common.ErrMissingRequired)
	}
	if len(req.Resource) == 0 {
		return nil, common.WrapPath("parameter[name=resource]", common.ErrMissingRequired)
	}
	return req, nil
}

// TraceEntry is one trace() call observed while evaluating a context
// item, carried through to the response's result.trace parts.
type TraceEntry struct {
	Name   string
	Values types.Collection
}

// ContextResult is the evaluation outcome for one context item (the
// whole resource, when no context expression was given, or one element
// of the context expression's result otherwise).
type ContextResult struct {
	ContextLabel string // e.g. "Patient.name[0]", empty when there is no context expression
	Values       types.Collection
	Traces       []TraceEntry
	Err          error
}

// EvalResponse is the full operation outcome: one ContextResult per
// context item plus the evaluator/expression metadata the Lab UI
// displays alongside results.
type EvalResponse struct {
	EvaluatorLabel string
	Expression     string
	ContextExpr    string
	Results        []ContextResult
}

// Encode renders the response as a FHIR Parameters JSON payload matching
// the $fhirpath operation's output shape.
func (r *EvalResponse) Encode() ([]byte, error) {
	out := wireParameters{ResourceType: "Parameters"}

	for _, res := range r.Results {
		if res.Err != nil {
			msg := res.Err.Error()
			out.Parameter = append(out.Parameter, wireParameter{
				Name:        "result",
				ValueString: common.String("error: " + msg),
			})
			continue
		}

		param := wireParameter{Name: "result"}
		if res.ContextLabel != "" {
			param.ValueString = common.String(res.ContextLabel)
		}
		for _, v := range res.Values {
			param.Part = append(param.Part, valueParameter(v))
		}
		for _, tr := range res.Traces {
			traceParam := wireParameter{Name: "trace", ValueString: common.String(tr.Name)}
			for _, v := range tr.Values {
				traceParam.Part = append(traceParam.Part, valueParameter(v))
			}
			param.Part = append(param.Part, traceParam)
		}
		out.Parameter = append(out.Parameter, param)
	}

	params := wireParameter{Name: "parameters"}
	params.Part = append(params.Part, wireParameter{Name: "evaluator", ValueString: common.String(r.EvaluatorLabel)})
	params.Part = append(params.Part, wireParameter{Name: "expression", ValueString: common.String(r.Expression)})
	if r.ContextExpr != "" {
		params.Part = append(params.Part, wireParameter{Name: "context", ValueString: common.String(r.ContextExpr)})
	}
	out.Parameter = append(out.Parameter, params)

	return json.MarshalIndent(out, "", "  ")
}

// valueParameter converts a single Value into a wire parameter, named
// after its FHIRPath type, matching the Lab's "named by datatype" result
// part convention.
func valueParameter(v types.Value) wireParameter {
	name := typeParamName(v.Type())
	return wireParameter{Name: name, ValueString: common.String(v.String())}
}

func typeParamName(typeName string) string {
	if typeName == "" {
		return "value"
	}
	return "value" + typeName
}
