package weights

import "compress/zlib"
import "encoding/json"
import "fmt"
import "io"
import "os"

// record is one parameter in the native weight format.
type record struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// WriteCompressedFile writes the state dict to a zlib compressed json file
func (s StateDict) WriteCompressedFile(name string) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	err = s.WriteCompressed(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteCompressed writes the state dict to a writer. Parameters are written
// sorted by name, so equal state dicts produce equal bytes.
func (s StateDict) WriteCompressed(w io.Writer) error {
	zw := zlib.NewWriter(w)

	_, err := zw.Write([]byte("[\n"))
	if err != nil {
		return err
	}
	for i, k := range s.Keys() {
		if i != 0 {
			_, err = zw.Write([]byte(",\n"))
			if err != nil {
				return err
			}
		}
		p := s[k]
		shape := p.Shape
		if shape == nil {
			shape = []int{}
		}
		buf, err := json.Marshal(record{Name: k, Shape: shape, Data: p.Data})
		if err != nil {
			return err
		}
		_, err = zw.Write(buf)
		if err != nil {
			return err
		}
	}
	_, err = zw.Write([]byte("\n]\n"))
	if err != nil {
		return err
	}
	return zw.Close()
}

// ReadCompressedFile reads a state dict from a zlib compressed json file
func ReadCompressedFile(name string) (StateDict, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	sd, err := ReadCompressed(file)
	if err != nil {
		return nil, fmt.Errorf("weights: reading %s: %w", name, err)
	}
	return sd, nil
}

// ReadCompressed reads a state dict from a reader
func ReadCompressed(r io.Reader) (StateDict, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var records []record
	if err := json.NewDecoder(zr).Decode(&records); err != nil {
		return nil, err
	}
	sd := make(StateDict, len(records))
	for _, rec := range records {
		if _, dup := sd[rec.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter %s", rec.Name)
		}
		sd[rec.Name] = Param{Shape: rec.Shape, Data: rec.Data}
	}
	return sd, nil
}
