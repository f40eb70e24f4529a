package resnet

import "errors"
import "fmt"
import "log/slog"
import "strings"

import "github.com/neurlang/imgembed/layer"
import "github.com/neurlang/imgembed/weights"

// Load assigns every parameter from sd. It fails if any expected parameter is
// missing or has a different shape; parameters the backbone does not use
// (the removed "fc" head, "num_batches_tracked" counters) are logged and
// skipped. A failed Load leaves the network as it was.
func (r *ResNet) Load(sd weights.StateDict, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	type assignment struct {
		name   string
		p      layer.Parametrized
		values map[string][]float32
	}
	var plan []assignment
	used := make(map[string]bool, len(sd))
	var errs []error
	r.visit(func(name string, p layer.Parametrized) {
		values := make(map[string][]float32)
		for _, q := range p.Params() {
			key := name + "." + q.Name
			data, err := sd.Lookup(key, q.Shape)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			used[key] = true
			values[q.Name] = data
		}
		plan = append(plan, assignment{name: name, p: p, values: values})
	})
	if len(errs) > 0 {
		return fmt.Errorf("resnet: loading %s: %w", r.cfg.Arch, errors.Join(errs...))
	}

	prev := make([]map[string][]float32, 0, len(plan))
	for _, a := range plan {
		old := a.p.Values()
		if err := a.p.SetParams(a.values); err != nil {
			for i := len(prev) - 1; i >= 0; i-- {
				_ = plan[i].p.SetParams(prev[i])
			}
			return fmt.Errorf("resnet: loading %s: %s: %w", r.cfg.Arch, a.name, err)
		}
		prev = append(prev, old)
	}

	for _, k := range sd.Keys() {
		if used[k] {
			continue
		}
		if strings.HasSuffix(k, ".num_batches_tracked") {
			log.Debug("skipping batch counter", "param", k)
			continue
		}
		log.Warn("ignoring parameter not used by the backbone", "param", k, "shape", sd[k].Shape)
	}
	r.ready = true
	log.Info("network loaded", "arch", r.cfg.Arch, "params", len(used), "out_dim", r.OutDim())
	return nil
}

// StateDict exports the current parameters with their state dict names.
func (r *ResNet) StateDict() weights.StateDict {
	sd := make(weights.StateDict)
	r.visit(func(name string, p layer.Parametrized) {
		values := p.Values()
		for _, q := range p.Params() {
			sd[name+"."+q.Name] = weights.Param{
				Shape: append([]int(nil), q.Shape...),
				Data:  values[q.Name],
			}
		}
	})
	return sd
}
