package dto

// LinkedInInitializeUploadRequest is the body of POST /rest/images?action=initializeUpload.
type LinkedInInitializeUploadRequest struct {
	InitializeUploadRequest LinkedInUploadOwner `json:"initializeUploadRequest"`
}

type LinkedInUploadOwner struct {
	Owner string `json:"owner"`
}

type LinkedInInitializeUploadResponse struct {
	Value struct {
		UploadURL          string `json:"uploadUrl"`
		UploadURLExpiresAt int64  `json:"uploadUrlExpiresAt"`
		Image              string `json:"image"`
	} `json:"value"`
}

// LinkedInPostRequest is the body of POST /rest/posts.
type LinkedInPostRequest struct {
	Author                    string               `json:"author"`
	Commentary                string               `json:"commentary"`
	Visibility                string               `json:"visibility"`
	Distribution              LinkedInDistribution `json:"distribution"`
	Content                   *LinkedInPostContent `json:"content,omitempty"`
	LifecycleState            string               `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool                 `json:"isReshareDisabledByAuthor"`
}

type LinkedInDistribution struct {
	FeedDistribution               string   `json:"feedDistribution"`
	TargetEntities                 []string `json:"targetEntities"`
	ThirdPartyDistributionChannels []string `json:"thirdPartyDistributionChannels"`
}

type LinkedInPostContent struct {
	Media      *LinkedInMedia      `json:"media,omitempty"`
	MultiImage *LinkedInMultiImage `json:"multiImage,omitempty"`
}

type LinkedInMedia struct {
	ID      string `json:"id"`
	AltText string `json:"altText,omitempty"`
}

type LinkedInMultiImage struct {
	Images []LinkedInMedia `json:"images"`
}

// LinkedInPostResponse is the optional JSON body returned when a post is created.
type LinkedInPostResponse struct {
	ID string `json:"id"`
}

// LinkedInSocialActions is the GET /rest/socialActions/{urn} summary.
type LinkedInSocialActions struct {
	LikesSummary struct {
		TotalLikes int `json:"totalLikes"`
	} `json:"likesSummary"`
	CommentsSummary struct {
		AggregatedTotalComments int `json:"aggregatedTotalComments"`
		TopLevelCount           int `json:"totalFirstLevelComments"`
	} `json:"commentsSummary"`
}

// LinkedInPageQuery is the paging query of list endpoints.
type LinkedInPageQuery struct {
	Start int `url:"start"`
	Count int `url:"count"`
}

type LinkedInCommentsPage struct {
	Elements []LinkedInComment `json:"elements"`
	Paging   struct {
		Start int `json:"start"`
		Count int `json:"count"`
		Total int `json:"total"`
	} `json:"paging"`
}

type LinkedInComment struct {
	ID      string `json:"id"`
	URN     string `json:"$URN"`
	Actor   string `json:"actor"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	Created struct {
		Time int64 `json:"time"`
	} `json:"created"`
}

// LinkedInErrorResponse is the error body LinkedIn returns on 4xx/5xx.
type LinkedInErrorResponse struct {
	Status           int    `json:"status"`
	ServiceErrorCode int    `json:"serviceErrorCode"`
	Code             string `json:"code"`
	Message          string `json:"message"`
}
