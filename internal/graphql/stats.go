package graphql

import (
	"context"
	"fmt"

	"github.com/datacite/akita/internal/model"
)

// WorkMetricsQuery fetches counters and time series for one work
const WorkMetricsQuery = `
query getWorkMetricsQuery($id: ID!) {
  work(id: $id) {
    id
    doi
    publicationYear
    formattedCitation
    registrationAgency {
      id
      name
    }
    citationCount
    viewCount
    downloadCount
    citations {
      totalCount
      published {
        id
        title
        count
      }
    }
    viewsOverTime {
      yearMonth
      total
    }
    downloadsOverTime {
      yearMonth
      total
    }
  }
}`

const facetFields = `
      title
      count`

// StatsQuery fetches the portal-wide statistics
const StatsQuery = `
query getStatsQuery {
  total: works {
    totalCount
    totalCountFromCrossref
    registrationAgencies {` + facetFields + `
    }
  }
  cited: works(hasCitations: 1) {
    totalCount
    registrationAgencies {` + facetFields + `
    }
  }
  claimed: works(hasPerson: true) {
    totalCount
    registrationAgencies {` + facetFields + `
    }
  }
  connected: works(hasOrganization: true, hasAffiliation: true, hasFunder: true, hasMember: true) {
    totalCount
    registrationAgencies {` + facetFields + `
    }
  }
  people {
    totalCount
    years {` + facetFields + `
    }
  }
  organizations {
    totalCount
  }
  publications: works(resourceTypeId: "Text") {
    totalCount
    published {` + facetFields + `
    }
  }
  citedPublications: works(resourceTypeId: "Text", hasCitations: 1) {
    totalCount
    published {` + facetFields + `
    }
  }
  datasets: works(resourceTypeId: "Dataset") {
    totalCount
    published {` + facetFields + `
    }
  }
  citedDatasets: works(resourceTypeId: "Dataset", hasCitations: 1) {
    totalCount
    published {` + facetFields + `
    }
  }
  softwares: works(resourceTypeId: "Software") {
    totalCount
    published {` + facetFields + `
    }
  }
  citedSoftwares: works(resourceTypeId: "Software", hasCitations: 1) {
    totalCount
    published {` + facetFields + `
    }
  }
}`

// PersonStatsQuery fetches statistics for works connected to people
const PersonStatsQuery = `
query getPersonStatsQuery {
  people {
    totalCount
    years {` + facetFields + `
    }
  }
  total: works {
    totalCount
    published {` + facetFields + `
    }
    registrationAgencies {` + facetFields + `
    }
  }
  claimed: works(hasPerson: true) {
    totalCount
    published {` + facetFields + `
    }
    registrationAgencies {` + facetFields + `
    }
  }
  cited: works(hasPerson: true, hasCitations: 1) {
    totalCount
    published {` + facetFields + `
    }
  }
  viewed: works(hasPerson: true, hasViews: 1) {
    totalCount
    published {` + facetFields + `
    }
  }
  downloaded: works(hasPerson: true, hasDownloads: 1) {
    totalCount
    published {` + facetFields + `
    }
  }
}`

// WorkMetrics fetches counters and time series for a work
func (c *Client) WorkMetrics(ctx context.Context, workID string) (*model.WorkMetrics, error) {
	var data struct {
		Work *model.WorkMetrics `json:"work"`
	}
	if err := c.Do(ctx, WorkMetricsQuery, map[string]any{"id": workID}, &data); err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	if data.Work == nil {
		return nil, ErrWorkNotFound
	}
	return data.Work, nil
}

// Stats fetches the portal-wide statistics
func (c *Client) Stats(ctx context.Context) (*model.Stats, error) {
	var stats model.Stats
	if err := c.Do(ctx, StatsQuery, nil, &stats); err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &stats, nil
}

// PersonStats fetches statistics for works connected to people
func (c *Client) PersonStats(ctx context.Context) (*model.PersonStats, error) {
	var stats model.PersonStats
	if err := c.Do(ctx, PersonStatsQuery, nil, &stats); err != nil {
		return nil, fmt.Errorf("query person stats: %w", err)
	}
	return &stats, nil
}
