package detect

import (
	"math"
	"sort"
)

const (
	defaultClusterSize = 50.0
	iouThreshold       = 0.45
)

// MergeDetections collapses duplicate boxes from a model without an NMS
// stage. Boxes are grouped with DBSCAN over their corner coordinates using
// an eps derived from the median box size, each cluster is merged into its
// bounding union, and noise points are folded into whichever cluster they
// overlap past the IoU threshold. A merged detection keeps the maximum
// confidence of its members.
func MergeDetections(detections []Detection) []Detection {
	if len(detections) == 0 {
		return nil
	}

	medianSize := calculateMedianSize(detections)
	eps := math.Max(medianSize, defaultClusterSize) * 0.5
	minPoints := 1
	if len(detections) > 3 {
		minPoints = 2
	}

	points := make([][]float64, len(detections))
	for i, det := range detections {
		points[i] = []float64{det.Box.X1, det.Box.Y1, det.Box.X2, det.Box.Y2}
	}

	clusters := dbscan(points, eps, minPoints)
	return processClusters(detections, clusters)
}

func calculateMedianSize(detections []Detection) float64 {
	sizes := make([]float64, len(detections))
	for i, det := range detections {
		sizes[i] = math.Sqrt(det.Box.Width() * det.Box.Height())
	}

	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

func processClusters(detections []Detection, clusters []int) []Detection {
	clusterMap := make(map[int][]Detection)
	var final []Detection

	for i, cluster := range clusters {
		if cluster == -1 {
			// Noise point: merge into an overlapping cluster if one exists.
			det := detections[i]
			merged := false
			for id, members := range clusterMap {
				for _, existing := range members {
					if iou(det.Box, existing.Box) > iouThreshold {
						clusterMap[id] = append(members, det)
						merged = true
						break
					}
				}
				if merged {
					break
				}
			}
			if !merged {
				final = append(final, det)
			}
		} else {
			clusterMap[cluster] = append(clusterMap[cluster], detections[i])
		}
	}

	for _, members := range clusterMap {
		if len(members) > 0 {
			final = append(final, mergeCluster(members))
		}
	}

	return final
}

func mergeCluster(members []Detection) Detection {
	merged := members[0]
	for _, det := range members[1:] {
		merged.Box.X1 = math.Min(merged.Box.X1, det.Box.X1)
		merged.Box.Y1 = math.Min(merged.Box.Y1, det.Box.Y1)
		merged.Box.X2 = math.Max(merged.Box.X2, det.Box.X2)
		merged.Box.Y2 = math.Max(merged.Box.Y2, det.Box.Y2)
		if det.Confidence > merged.Confidence {
			merged.Confidence = det.Confidence
		}
	}
	return merged
}

func iou(a, b Box) float64 {
	x1 := math.Max(a.X1, b.X1)
	y1 := math.Max(a.Y1, b.Y1)
	x2 := math.Min(a.X2, b.X2)
	y2 := math.Min(a.Y2, b.Y2)

	if x2 <= x1 || y2 <= y1 {
		return 0.0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := a.Width()*a.Height() + b.Width()*b.Height() - intersection

	return intersection / union
}

func dbscan(points [][]float64, eps float64, minPoints int) []int {
	n := len(points)
	clusters := make([]int, n)
	for i := range clusters {
		clusters[i] = -1
	}

	currentCluster := 0
	for i := 0; i < n; i++ {
		if clusters[i] != -1 {
			continue
		}

		neighbors := getNeighbors(points, i, eps)
		if len(neighbors) < minPoints {
			continue
		}

		clusters[i] = currentCluster
		expandCluster(points, clusters, neighbors, currentCluster, eps, minPoints)
		currentCluster++
	}

	return clusters
}

func getNeighbors(points [][]float64, pointIdx int, eps float64) []int {
	var neighbors []int
	for i := range points {
		if distance(points[pointIdx], points[i]) <= eps {
			neighbors = append(neighbors, i)
		}
	}
	return neighbors
}

func expandCluster(points [][]float64, clusters []int, neighbors []int, cluster int, eps float64, minPoints int) {
	for i := 0; i < len(neighbors); i++ {
		pointIdx := neighbors[i]
		if clusters[pointIdx] == -1 {
			clusters[pointIdx] = cluster
			newNeighbors := getNeighbors(points, pointIdx, eps)
			if len(newNeighbors) >= minPoints {
				neighbors = append(neighbors, newNeighbors...)
			}
		}
	}
}

func distance(p1, p2 []float64) float64 {
	sum := 0.0
	for i := range p1 {
		diff := p1[i] - p2[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
