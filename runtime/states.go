package runtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/BDNK1/sfnsim/runtime/choice"
	"github.com/BDNK1/sfnsim/runtime/engine/jsonpath"
	"github.com/BDNK1/sfnsim/runtime/states"
	"golang.org/x/sync/errgroup"
)

func (x *Executor) pass(e *Execution, s *State, flow DataFlow, raw any) (any, error) {
	effective, err := flow.Input(e, s, raw)
	if err != nil {
		return nil, err
	}

	// JSONPath Pass states produce Result, or their effective input, as their
	// result. JSONata Pass states only have Output.
	if _, ok := flow.(*pathFlow); ok {
		result := effective
		if s.Result != nil {
			result = jsonpath.DeepCopy(s.Result)
		}
		return flow.Output(e, s, raw, effective, result, true)
	}
	return flow.Output(e, s, raw, effective, nil, false)
}

func (x *Executor) choose(e *Execution, s *State, flow DataFlow, raw any) (any, string, error) {
	effective, err := flow.Input(e, s, raw)
	if err != nil {
		return nil, "", err
	}

	matched, err := choice.Run(s.Choices, s.Default, flow.Matcher(e, effective))
	if err != nil {
		return nil, "", err
	}
	x.l.InfoContext(e, fmt.Sprintf("Choice %s selected %s", e.Vars.Context.State.Name, matched.Next))

	// A matched JSONata rule may carry its own Output and Assign.
	target := s
	if matched.Rule != nil && (matched.Rule.Output != nil || matched.Rule.Assign != nil) {
		override := *s
		if matched.Rule.Output != nil {
			override.Output = matched.Rule.Output
		}
		if matched.Rule.Assign != nil {
			override.Assign = matched.Rule.Assign
		}
		target = &override
	}

	output, err := flow.Output(e, target, raw, effective, nil, false)
	if err != nil {
		return nil, "", err
	}
	return output, matched.Next, nil
}

func (x *Executor) wait(e *Execution, s *State, flow DataFlow, raw any) (any, error) {
	effective, err := flow.Input(e, s, raw)
	if err != nil {
		return nil, err
	}

	spec, err := flow.WaitFor(e, s, effective)
	if err != nil {
		return nil, err
	}
	seconds := spec.Duration(x.opts.Now())
	x.l.InfoContext(e, fmt.Sprintf("Waiting %gs in state %s", seconds, e.Vars.Context.State.Name))
	if err := x.opts.Wait(e, seconds); err != nil {
		return nil, err
	}
	return flow.Output(e, s, raw, effective, nil, false)
}

func (x *Executor) succeed(e *Execution, s *State, flow DataFlow, raw any) (any, error) {
	effective, err := flow.Input(e, s, raw)
	if err != nil {
		return nil, err
	}
	return flow.Output(e, s, raw, effective, nil, false)
}

func (x *Executor) fail(e *Execution, s *State, flow DataFlow, raw any) error {
	name, cause, err := flow.Failure(e, s, raw)
	if err != nil {
		return err
	}
	return states.NewFailError(name, cause)
}

// branchError keeps named errors so outer Catchers can match them and
// wraps everything else.
func branchError(err error) error {
	if _, ok := states.As(err); ok {
		return err
	}
	return states.NewBranchFailed(err)
}

func (x *Executor) parallel(e *Execution, s *State, flow DataFlow, raw any, language string) (any, error) {
	effective, err := flow.Input(e, s, raw)
	if err != nil {
		return nil, err
	}

	results := make([]any, len(s.Branches))
	g, ctx := errgroup.WithContext(e)

	for i, branch := range s.Branches {
		g.Go(func() error {
			child := e.Fork(ctx)
			child.Vars.Context.Execution.Input = jsonpath.DeepCopy(effective)
			child.Vars.Context.State.Name = branch.StartAt

			output, err := x.executeStateMachine(child, branch, jsonpath.DeepCopy(effective), language)
			if err != nil {
				return branchError(err)
			}
			results[i] = output
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return flow.Output(e, s, raw, effective, results, true)
}

func (x *Executor) mapItems(e *Execution, s *State, flow DataFlow, effective any) ([]any, error) {
	if s.ItemReader == nil {
		return flow.Items(e, s, effective)
	}
	items, err := x.readItems(e, s, flow, effective)
	if err != nil {
		if se, ok := states.As(err); ok && se.Name == states.ItemReaderFailed {
			return nil, err
		}
		return nil, states.NewItemReaderFailed(err)
	}
	return items, nil
}

// readItems reads a JSON array from the object an ItemReader points at.
func (x *Executor) readItems(e *Execution, s *State, flow DataFlow, effective any) ([]any, error) {
	reader := s.ItemReader
	if !strings.HasSuffix(reader.Resource, "s3:getObject") {
		return nil, fmt.Errorf("unsupported ItemReader resource [%s]", reader.Resource)
	}

	params := any(reader.Parameters)
	if reader.Arguments != nil {
		params = reader.Arguments
	}
	rendered, err := flow.Template(e, params, effective)
	if err != nil {
		return nil, err
	}
	_, object, err := x.getObject(e, rendered)
	if err != nil {
		return nil, err
	}

	body, _ := object.(map[string]any)["Body"].(string)
	var items []any
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, fmt.Errorf("object is not a JSON array: %w", err)
	}

	if limit, ok := reader.ReaderConfig["MaxItems"].(float64); ok && limit > 0 && int(limit) < len(items) {
		items = items[:int(limit)]
	}
	return items, nil
}

// writeResults stores Map results through a ResultWriter and returns the
// details object that replaces them as the state result.
func (x *Executor) writeResults(e *Execution, s *State, flow DataFlow, effective any, results []any) (any, error) {
	writer := s.ResultWriter
	params := any(writer.Parameters)
	if writer.Arguments != nil {
		params = writer.Arguments
	}
	rendered, err := flow.Template(e, params, effective)
	if err != nil {
		return nil, states.NewResultWriterFailed(err)
	}
	m, _ := rendered.(map[string]any)
	bucket, _ := m["Bucket"].(string)
	prefix, _ := m["Prefix"].(string)

	key := e.Name + "/results.json"
	if prefix = strings.TrimSuffix(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}

	_, _, err = x.putObject(e, map[string]any{"Bucket": bucket, "Key": key, "Body": results})
	if err != nil {
		return nil, states.NewResultWriterFailed(err)
	}
	return map[string]any{
		"ResultWriterDetails": map[string]any{"Bucket": bucket, "Key": key},
	}, nil
}

// toleratedFailure reports whether the Map state keeps going when items fail.
func toleratedFailure(s *State) bool {
	return s.ToleratedFailureCount != nil || s.ToleratedFailurePercentage != nil
}

func exceedsTolerance(s *State, failed, total int) bool {
	if s.ToleratedFailureCount != nil && failed > *s.ToleratedFailureCount {
		return true
	}
	if s.ToleratedFailurePercentage != nil && total > 0 &&
		float64(failed)*100/float64(total) > *s.ToleratedFailurePercentage {
		return true
	}
	return false
}

func (x *Executor) mapState(e *Execution, s *State, flow DataFlow, raw any, language string) (any, error) {
	effective, err := flow.Input(e, s, raw)
	if err != nil {
		return nil, err
	}
	items, err := x.mapItems(e, s, flow, effective)
	if err != nil {
		return nil, err
	}

	processor := s.Processor()
	if processor == nil {
		return nil, states.NewRuntimeError("Map state has no ItemProcessor")
	}
	tolerant := toleratedFailure(s)
	results := make([]any, len(items))
	var failed atomic.Int64

	g, ctx := errgroup.WithContext(e)
	if s.MaxConcurrency > 0 {
		g.SetLimit(s.MaxConcurrency)
	}

	for i, item := range items {
		g.Go(func() error {
			child := e.Fork(ctx)
			child.Vars.Context.Execution.Input = jsonpath.DeepCopy(item)
			child.Vars.Context.Map = &MapContext{Item: MapItem{Index: i, Value: jsonpath.DeepCopy(item)}}

			output, err := x.runItem(child, s, flow, processor, effective, item, language)
			if err == nil {
				results[i] = output
				return nil
			}
			if tolerant {
				failed.Add(1)
				results[i] = errorOutput(err)
				return nil
			}
			return branchError(err)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if tolerant && exceedsTolerance(s, int(failed.Load()), len(items)) {
		return nil, states.NewExceedToleratedFailureThreshold()
	}

	var result any = results
	if s.ResultWriter != nil {
		result, err = x.writeResults(e, s, flow, effective, results)
		if err != nil {
			return nil, err
		}
	}
	return flow.Output(e, s, raw, effective, result, true)
}

func (x *Executor) runItem(child *Execution, s *State, flow DataFlow, processor *Definition, effective, item any, language string) (any, error) {
	input, err := flow.ItemInput(child, s, effective, item)
	if err != nil {
		return nil, asStateError(err)
	}
	return x.executeStateMachine(child, processor, input, language)
}
