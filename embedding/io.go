package embedding

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// Save writes the matrix as a NumPy .npy file of shape [N, Dim] and the
// paths as a JSON array. Both files are always written together, matrix
// first. An empty set is written as a [0, Dim] matrix and an empty array.
func Save(s *Set, matrixPath, pathsPath string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := writeMatrix(s, matrixPath); err != nil {
		return fmt.Errorf("embedding: writing %s: %w", matrixPath, err)
	}
	if err := writePaths(s.Paths, pathsPath); err != nil {
		return fmt.Errorf("embedding: writing %s: %w", pathsPath, err)
	}
	return nil
}

func writeMatrix(s *Set, path string) error {
	// mat.NewDense rejects zero rows; the raw form keeps the width
	m := new(mat.Dense)
	m.SetRawMatrix(blas64.General{Rows: 0, Cols: s.Dim, Stride: s.Dim})
	if s.Len() > 0 && s.Dim > 0 {
		data := make([]float64, s.Len()*s.Dim)
		for i, v := range s.Vectors {
			for j, x := range v {
				data[i*s.Dim+j] = float64(x)
			}
		}
		m = mat.NewDense(s.Len(), s.Dim, data)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = npyio.Write(f, m)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func writePaths(paths []string, path string) error {
	if paths == nil {
		paths = []string{}
	}
	buf, err := json.MarshalIndent(paths, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(buf, '\n'), 0o644)
}

// Load reads a set written by Save and checks that both files agree.
func Load(matrixPath, pathsPath string) (*Set, error) {
	rows, dim, data, err := readMatrix(matrixPath)
	if err != nil {
		return nil, fmt.Errorf("embedding: reading %s: %w", matrixPath, err)
	}
	buf, err := os.ReadFile(pathsPath)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	var paths []string
	if err := json.Unmarshal(buf, &paths); err != nil {
		return nil, fmt.Errorf("embedding: reading %s: %w", pathsPath, err)
	}
	if len(paths) != rows {
		return nil, fmt.Errorf("embedding: %s has %d rows but %s lists %d paths", matrixPath, rows, pathsPath, len(paths))
	}

	s := New(dim)
	for i, p := range paths {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = float32(data[i*dim+j])
		}
		s.Paths = append(s.Paths, p)
		s.Vectors = append(s.Vectors, vec)
	}
	return s, nil
}

func readMatrix(path string) (rows, dim int, data []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return 0, 0, nil, err
	}
	shape := r.Header.Descr.Shape
	switch {
	case len(shape) == 1 && shape[0] == 0:
		return 0, 0, nil, nil
	case len(shape) == 2:
		rows, dim = shape[0], shape[1]
	default:
		return 0, 0, nil, fmt.Errorf("matrix has shape %v, want [rows, dim]", shape)
	}
	data = make([]float64, rows*dim)
	if len(data) > 0 {
		if err := r.Read(&data); err != nil {
			return 0, 0, nil, err
		}
	}
	return rows, dim, data, nil
}
